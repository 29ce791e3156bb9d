package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Middleware", func() {
	var r *gin.Engine

	BeforeEach(func() {
		r = gin.New()
		r.Use(Middleware())
		r.GET("/jobs/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	})

	It("labels requests with the route template", func() {
		counter := httpReqs.WithLabelValues(http.MethodGet, "/jobs/:id", "204")
		before := testutil.ToFloat64(counter)

		for _, id := range []string{"1", "2"} {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+id, nil))
			Expect(w.Code).To(Equal(http.StatusNoContent))
		}

		Expect(testutil.ToFloat64(counter) - before).To(Equal(2.0))
	})

	It("labels every unmatched path the same way", func() {
		counter := httpReqs.WithLabelValues(http.MethodGet, unmatchedPath, "404")
		before := testutil.ToFloat64(counter)

		for _, path := range []string{"/nowhere", "/wp-admin", "/.env"} {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		}

		Expect(testutil.ToFloat64(counter) - before).To(Equal(3.0))
		Expect(testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, "/nowhere", "404"))).To(BeZero())
	})
})

var _ = Describe("Serve", func() {
	It("returns nil once the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- Serve(ctx, "127.0.0.1:0") }()

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
