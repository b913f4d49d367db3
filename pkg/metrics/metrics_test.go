package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegistered(t *testing.T) {
	PagesFetched.WithLabelValues("ok").Inc()
	JobsFinished.WithLabelValues("completed").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["listing_scraper_pages_fetched_total"])
	assert.True(t, names["listing_scraper_jobs_finished_total"])
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(ProductsPersisted)
	ProductsPersisted.Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(ProductsPersisted))

	before = testutil.ToFloat64(PageErrors.WithLabelValues("HTTP_5xx"))
	PageErrors.WithLabelValues("HTTP_5xx").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PageErrors.WithLabelValues("HTTP_5xx")))
}

func TestHelpTextPresent(t *testing.T) {
	expected := `
# HELP listing_scraper_jobs_running Jobs currently executing in this process.
# TYPE listing_scraper_jobs_running gauge
listing_scraper_jobs_running 0
`
	JobsRunning.Set(0)
	assert.NoError(t, testutil.CollectAndCompare(JobsRunning, strings.NewReader(expected)))
}
