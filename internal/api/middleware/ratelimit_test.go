package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterTake(t *testing.T) {
	rl := NewRateLimiter(0, 2)

	assert.True(t, rl.take("10.0.0.1:1234"))
	assert.True(t, rl.take("10.0.0.1:1234"))
	assert.False(t, rl.take("10.0.0.1:1234"), "bucket exhausted with zero refill")

	// Other clients keep their own budget.
	assert.True(t, rl.take("10.0.0.2:1234"))
}

func TestRateLimiterLimit(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/jobs", nil)
	req.RemoteAddr = "10.0.0.3:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RATE_LIMITED", resp["code"])
}
