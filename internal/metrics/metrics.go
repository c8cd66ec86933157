package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TweetsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetharvest_tweets_fetched_total",
		Help: "Tweets read from the search cursor",
	}, []string{"query"})
	TweetsStored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetharvest_tweets_stored_total",
		Help: "Records written to the sink",
	}, []string{"query"})
	SinkWriteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetharvest_sink_write_errors_total",
		Help: "Records dropped because the sink write failed",
	}, []string{"query"})
	DeadLetters = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweetharvest_dead_letters_total",
		Help: "Records parked in the dead-letter buffer",
	})
	Backoffs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetharvest_upstream_backoffs_total",
		Help: "Backoff sleeps after an upstream error",
	}, []string{"query"})
	QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tweetharvest_query_duration_seconds",
		Help:    "Time spent collecting one query",
		Buckets: []float64{1, 10, 60, 300, 900, 3600, 4 * 3600},
	})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetharvest_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetharvest_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tweetharvest_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(TweetsFetched, TweetsStored, SinkWriteErrors, DeadLetters, Backoffs, QueryDuration, APIRetries, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveQueryDuration records how long a query took since start.
func ObserveQueryDuration(start time.Time) {
	QueryDuration.Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
