package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/listing-scraper/pkg/models"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createJob(t *testing.T, s Store, id, term string, created time.Time) *models.Job {
	t.Helper()
	job := models.NewJob(id, term, 3)
	job.CreatedAt = created
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

func products(n int, prefix string) []models.Product {
	out := make([]models.Product, n)
	for i := range out {
		rating := 4.0 + float64(i)/10
		out[i] = models.Product{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Title:     fmt.Sprintf("%s product %d", prefix, i),
			Price:     "9.99",
			Rating:    &rating,
			CreatedAt: time.Now().UTC(),
		}
	}
	return out
}

func TestBadgerStore_JobRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := createJob(t, store, "job-1", "mechanical keyboard", time.Now().UTC())

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "mechanical keyboard", got.SearchTerm)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, job.Transition(models.JobStatusRunning))
	job.CurrentPage = 2
	job.ErrorMessage = "Error on page 1: boom"
	require.NoError(t, store.UpdateJob(ctx, job))

	got, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.Equal(t, 2, got.CurrentPage)
	assert.Equal(t, "Error on page 1: boom", got.ErrorMessage)
}

func TestBadgerStore_CreateDuplicateFails(t *testing.T) {
	store := newTestStore(t)
	createJob(t, store, "dup", "a", time.Now())

	err := store.CreateJob(context.Background(), models.NewJob("dup", "b", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrDatabase)
}

func TestBadgerStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrJobNotFound)

	err = store.UpdateJob(ctx, models.NewJob("missing", "x", 1))
	assert.ErrorIs(t, err, utils.ErrJobNotFound)

	err = store.DeleteJob(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrJobNotFound)

	err = store.AddProducts(ctx, "missing", products(1, "p"))
	assert.ErrorIs(t, err, utils.ErrJobNotFound, "products need an owning job")
}

func TestBadgerStore_ListJobsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		createJob(t, store, fmt.Sprintf("job-%02d", i), "term", base.Add(time.Duration(i)*time.Minute))
	}

	jobs, err := store.ListJobs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 10)
	assert.Equal(t, "job-11", jobs[0].ID)
	assert.Equal(t, "job-02", jobs[9].ID)

	all, err := store.ListJobs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 12)
}

func TestBadgerStore_ProductsKeepInsertionOrderAcrossBatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createJob(t, store, "job-1", "term", time.Now())

	require.NoError(t, store.AddProducts(ctx, "job-1", products(12, "page1")))
	require.NoError(t, store.AddProducts(ctx, "job-1", products(3, "page2")))
	require.NoError(t, store.AddProducts(ctx, "job-1", nil))

	got, err := store.ListProducts(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, got, 15)
	assert.Equal(t, "page1-0", got[0].ID)
	assert.Equal(t, "page1-11", got[11].ID, "zero-padded sequence keeps 11 after 2")
	assert.Equal(t, "page2-2", got[14].ID)
	assert.Equal(t, "job-1", got[0].JobID)
	require.NotNil(t, got[1].Rating)
	assert.InDelta(t, 4.1, *got[1].Rating, 1e-9)
	assert.Nil(t, got[0].ReviewCount)

	n, err := store.CountProducts(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 15, n)
}

func TestBadgerStore_DeleteCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createJob(t, store, "job-a", "a", time.Now())
	createJob(t, store, "job-b", "b", time.Now())
	require.NoError(t, store.AddProducts(ctx, "job-a", products(5, "a")))
	require.NoError(t, store.AddProducts(ctx, "job-b", products(2, "b")))

	require.NoError(t, store.DeleteJob(ctx, "job-a"))

	_, err := store.GetJob(ctx, "job-a")
	assert.ErrorIs(t, err, utils.ErrJobNotFound)
	n, err := store.CountProducts(ctx, "job-a")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.CountProducts(ctx, "job-b")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "other jobs untouched")
}

func TestBadgerStore_ProductCountNotPersisted(t *testing.T) {
	store := newTestStore(t)
	job := models.NewJob("job-1", "term", 1)
	job.ProductCount = 99
	require.NoError(t, store.CreateJob(context.Background(), job))

	got, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Zero(t, got.ProductCount)
}

func TestBadgerStore_ConcurrentJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("job-%d", i)
		createJob(t, store, id, "term", time.Now())
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := 0; page < 4; page++ {
				assert.NoError(t, store.AddProducts(ctx, id, products(5, fmt.Sprintf("%s-p%d", id, page))))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		n, err := store.CountProducts(ctx, fmt.Sprintf("job-%d", i))
		require.NoError(t, err)
		assert.Equal(t, 20, n)
	}
}

func TestBadgerStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store1, err := NewBadgerStore(dir, testLogger())
	require.NoError(t, err)
	createJob(t, store1, "job-1", "term", time.Now())
	require.NoError(t, store1.AddProducts(ctx, "job-1", products(2, "x")))
	require.NoError(t, store1.Close())

	store2, err := NewBadgerStore(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store2.Close() })

	require.NoError(t, store2.AddProducts(ctx, "job-1", products(1, "y")))
	got, err := store2.ListProducts(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "y-0", got[2].ID, "sequence continues after reopen")
}

func TestBadgerStore_RunGCStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunGC(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop after context cancellation")
	}
}

func TestBadgerStore_CloseTwice(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
