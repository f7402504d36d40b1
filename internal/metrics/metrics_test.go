package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/portfolio/{teamID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	series := HTTPRequestsTotal.WithLabelValues("GET", "/portfolio/{teamID}", "200")
	before := testutil.ToFloat64(series)

	for _, id := range []string{"Alpha", "Beta"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/portfolio/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// Both requests land on one pattern-labeled series; raw paths must not
	// mint a series per team name.
	assert.Equal(t, before+2, testutil.ToFloat64(series))
	assert.Zero(t, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/portfolio/Alpha", "200")))
}

func TestMiddlewareCapturesStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	series := HTTPRequestsTotal.WithLabelValues("GET", "/boom", "409")
	before := testutil.ToFloat64(series)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(series))
}
