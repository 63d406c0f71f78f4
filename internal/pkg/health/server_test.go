package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func get(mux http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMux_Endpoints(t *testing.T) {
	ready := error(nil)
	mux := NewMux(Sources{
		Ready:    func() error { return ready },
		Progress: func() any { return map[string]int{"cursor": 3, "total": 10} },
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("matchscraper_cursor 3\n"))
		}),
	})

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/ping", http.StatusOK, "pong\n"},
		{"/health", http.StatusOK, "ok\n"},
		{"/progress", http.StatusOK, "{\"cursor\":3,\"total\":10}\n"},
		{"/metrics", http.StatusOK, "matchscraper_cursor 3\n"},
		{"/performance", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(mux, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}

	ready = errors.New("browser session closed")
	rec := get(mux, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "browser session closed\n", rec.Body.String())
}
