// Package metrics holds the Prometheus collectors shared by the daemon, the
// scheduler and the HTTP layer.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsTotal counts finished harvest jobs by final status.
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_jobs_total",
			Help: "Harvest jobs processed, by final status.",
		},
		[]string{"status"},
	)

	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_job_duration_seconds",
			Help:    "Wall time of a harvest job from claim to finish.",
			Buckets: []float64{.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	MessagesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_messages_fetched_total",
			Help: "Messages read from Discord that passed the range filter.",
		},
	)

	MessagesInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_messages_inserted_total",
			Help: "Messages newly written to the store.",
		},
	)

	// QueueClaims counts claim attempts by result: claimed, empty or error.
	QueueClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_queue_claims_total",
			Help: "Job claim attempts by result.",
		},
		[]string{"result"},
	)

	MessagesPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_messages_pruned_total",
			Help: "Messages deleted by the retention job.",
		},
	)

	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal, JobDuration, MessagesFetched, MessagesInserted, QueueClaims, MessagesPruned, httpReqs, httpLat)
}

// unmatchedPath labels requests that hit no route.
const unmatchedPath = "unmatched"

// Middleware instruments gin requests. The path label is the registered
// route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		httpReqs.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
