package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/log"
	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

const (
	jobKeyPrefix     = "job:"     // job:<id> -> JSON Job
	productKeyPrefix = "product:" // product:<jobID>:<seq> -> JSON Product
	seqKeyPrefix     = "seq:"     // seq:<jobID> -> last product sequence (uint64)
	jobsDBDir        = "jobs_db"  // Subdirectory name within stateDir for Badger DB files
)

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db  *badger.DB    // Jobs, products and per-job sequence counters
	log *logrus.Entry // Component logger; badger's own logs go through the adapter
}

// NewBadgerStore opens (or creates) the job database under stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, jobsDBDir)
	logger.Infof("Initializing job database at: %s", dbPath)

	// Ensure the directory exists before badger.Open
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger). // Route badger logs into logrus
		WithNumVersionsToKeep(1)  // Only the latest job row matters

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	return &BadgerStore{db: db, log: logger}, nil
}

const maxConflictRetries = 10 // Attempts before a conflict surfaces as ErrDatabase

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent jobs only touch their own keys, so conflicts are rare and short-lived.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err // Success or a non-retryable error
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func jobKey(id string) []byte { return []byte(jobKeyPrefix + id) }

func productPrefix(jobID string) []byte { return []byte(productKeyPrefix + jobID + ":") }

// productKey zero-pads seq so that lexical key order is insertion order
func productKey(jobID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", productKeyPrefix, jobID, seq))
}

func seqKey(jobID string) []byte { return []byte(seqKeyPrefix + jobID) }

// getJob reads and decodes a job inside txn
func getJob(txn *badger.Txn, id string) (*models.Job, error) {
	item, err := txn.Get(jobKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", utils.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job %s: %w", utils.ErrDatabase, id, err)
	}
	var job models.Job
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &job)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: decode job %s: %w", utils.ErrDatabase, id, err)
	}
	return &job, nil
}

func encodeJob(job *models.Job) ([]byte, error) {
	stored := *job
	stored.ProductCount = 0 // Derived on read, never stored
	b, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("%w: encode JSON for job %s: %w", utils.ErrParsing, job.ID, err)
	}
	return b, nil
}

// CreateJob implements Store
func (s *BadgerStore) CreateJob(ctx context.Context, job *models.Job) error {
	val, err := encodeJob(job)
	if err != nil {
		return err
	}
	err = s.dbUpdate(func(txn *badger.Txn) error {
		// IDs are uuids; a collision means the caller reused one
		if _, errGet := txn.Get(jobKey(job.ID)); errGet == nil {
			return fmt.Errorf("%w: job %s already exists", utils.ErrDatabase, job.ID)
		} else if !errors.Is(errGet, badger.ErrKeyNotFound) {
			return errGet
		}
		return txn.Set(jobKey(job.ID), val)
	})
	if err != nil {
		s.log.WithField("job_id", job.ID).Errorf("DB Update error in CreateJob: %v", err)
		return wrapDB(err, "create job %s", job.ID)
	}
	return nil
}

// GetJob implements Store
func (s *BadgerStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job *models.Job
	err := s.db.View(func(txn *badger.Txn) error {
		var errGet error
		job, errGet = getJob(txn, id)
		return errGet
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateJob implements Store
func (s *BadgerStore) UpdateJob(ctx context.Context, job *models.Job) error {
	val, err := encodeJob(job)
	if err != nil {
		return err
	}
	err = s.dbUpdate(func(txn *badger.Txn) error {
		if _, errGet := getJob(txn, job.ID); errGet != nil {
			return errGet // Updates never create rows
		}
		return txn.Set(jobKey(job.ID), val)
	})
	if err != nil {
		s.log.WithField("job_id", job.ID).Errorf("DB Update error in UpdateJob: %v", err)
		return wrapDB(err, "update job %s", job.ID)
	}
	return nil
}

// ListJobs implements Store
func (s *BadgerStore) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	var jobs []*models.Job
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(jobKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var job models.Job
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &job) }); err != nil {
				// One bad row should not hide the rest of the list
				s.log.Warnf("Skipping undecodable job key '%s': %v", it.Item().Key(), err)
				continue
			}
			jobs = append(jobs, &job)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", utils.ErrDatabase, err)
	}

	// Keys are ordered by id, so newest-first needs an explicit sort
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// DeleteJob implements Store. Products go with the job in the same transaction.
func (s *BadgerStore) DeleteJob(ctx context.Context, id string) error {
	removed := 0
	err := s.dbUpdate(func(txn *badger.Txn) error {
		removed = 0 // Reset on conflict retry
		if _, errGet := getJob(txn, id); errGet != nil {
			return errGet
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Keys only
		it := txn.NewIterator(opts)
		var keys [][]byte
		prefix := productPrefix(id)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil)) // Key is only valid until Next
		}
		it.Close() // Must close before deleting in the same txn

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		if err := txn.Delete(seqKey(id)); err != nil { // Deleting a missing key is fine
			return err
		}
		return txn.Delete(jobKey(id))
	})
	if err != nil {
		return wrapDB(err, "delete job %s", id)
	}
	s.log.WithField("job_id", id).Debugf("Deleted job and %d products", removed)
	return nil
}

// AddProducts implements Store. The batch and the sequence bump commit together.
func (s *BadgerStore) AddProducts(ctx context.Context, jobID string, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	encoded := make([][]byte, len(products))
	for i := range products {
		p := products[i]
		p.JobID = jobID // Batch always belongs to jobID
		b, err := json.Marshal(&p)
		if err != nil {
			return fmt.Errorf("%w: encode JSON for product %s: %w", utils.ErrParsing, p.ID, err)
		}
		encoded[i] = b
	}

	err := s.dbUpdate(func(txn *badger.Txn) error {
		if _, errGet := getJob(txn, jobID); errGet != nil {
			return errGet // No orphan products
		}
		seq, err := readSeq(txn, jobID)
		if err != nil {
			return err
		}
		for _, val := range encoded {
			seq++
			if err := txn.Set(productKey(jobID, seq), val); err != nil {
				return err
			}
		}
		buf := make([]byte, 8) // Big-endian uint64
		binary.BigEndian.PutUint64(buf, seq)
		return txn.Set(seqKey(jobID), buf)
	})
	if err != nil {
		s.log.WithField("job_id", jobID).Errorf("DB Update error in AddProducts: %v", err)
		return wrapDB(err, "add %d products to job %s", len(products), jobID)
	}
	return nil
}

// readSeq returns the last product sequence for jobID, 0 before the first batch
func readSeq(txn *badger.Txn, jobID string) (uint64, error) {
	item, err := txn.Get(seqKey(jobID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil // First batch
	}
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence value for job %s", jobID)
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err
}

// ListProducts implements Store
func (s *BadgerStore) ListProducts(ctx context.Context, jobID string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := productPrefix(jobID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p models.Product
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
				return fmt.Errorf("%w: decode product '%s': %w", utils.ErrParsing, it.Item().Key(), err)
			}
			products = append(products, p) // Key order is insertion order
		}
		return nil
	})
	if err != nil {
		return nil, wrapDB(err, "list products for job %s", jobID)
	}
	return products, nil
}

// CountProducts implements Store
func (s *BadgerStore) CountProducts(ctx context.Context, jobID string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Counting needs keys only
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := productPrefix(jobID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, wrapDB(err, "count products for job %s", jobID)
	}
	return count, nil
}

// RunGC runs BadgerDB's value log garbage collection periodically until ctx ends
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute // Default GC interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue // Closed underneath us; wait for ctx to end
			}
			var err error
			for err == nil {
				// Rewrite while at least half of a value log file is reclaimable
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) { // ErrNoRewrite means nothing left to collect
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements Store
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		s.log.Info("Closing job DB...")
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing job DB: %v", err)
			return err
		}
	}
	return nil
}

// wrapDB tags err with ErrDatabase unless it already carries a domain sentinel
func wrapDB(err error, format string, args ...interface{}) error {
	if errors.Is(err, utils.ErrJobNotFound) || errors.Is(err, utils.ErrDatabase) || errors.Is(err, utils.ErrParsing) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", utils.ErrDatabase, fmt.Sprintf(format, args...), err)
}
