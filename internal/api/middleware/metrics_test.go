package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"loan-engine/internal/infrastructure/monitoring"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsMiddleware(t *testing.T) {
	counter := monitoring.HTTP.RequestsTotal.WithLabelValues(http.MethodGet, "/loans/{loanID}", "200")
	before := testutil.ToFloat64(counter)

	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/loans/{loanID}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	for _, path := range []string{"/loans/1", "/loans/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
