package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coproportal/imageopt/pkg/metrics"
)

// captureLog redirects the global logger into a buffer for the test
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		lines = append(lines, line)
	}
	return lines
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func statusHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/optimize", nil)
	req.RemoteAddr = ip
	return req
}

func TestRateLimiter_BurstThenRate(t *testing.T) {
	rl := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i+1)
	}
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per client")
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(20, 1)

	require.True(t, rl.Allow("10.0.0.1"))
	require.False(t, rl.Allow("10.0.0.1"))

	// one token every 50ms at 20/s
	time.Sleep(120 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")

	assert.Zero(t, rl.prune(time.Now()))
	assert.Equal(t, 2, rl.prune(time.Now().Add(rl.ttl+time.Second)))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.clients)
}

func TestRateLimit_Rejects(t *testing.T) {
	handler := RateLimit(1, 2)(statusHandler(http.StatusOK))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.168.1.7:4000"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.168.1.7:4001"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Rate limit exceeded"}`, w.Body.String())
}

func TestGetIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"Remote addr", "203.0.113.9:5555", nil, "203.0.113.9"},
		{"Remote addr without port", "203.0.113.9", nil, "203.0.113.9"},
		{"IPv6", "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"Forwarded chain", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}, "198.51.100.4"},
		{"Real IP", "10.0.0.1:80", map[string]string{"X-Real-IP": " 198.51.100.5 "}, "198.51.100.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestFrom(tt.remote)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getIP(req))
		})
	}
}

func TestGetIPPrefix(t *testing.T) {
	assert.Equal(t, "192.0.0.0", getIPPrefix("192.168.1.7"))
	assert.Equal(t, "2001:", getIPPrefix("2001:db8::1"))
	assert.Equal(t, "unknown", getIPPrefix("not-an-ip"))
}

func TestConcurrencyLimit_Sheds(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := ConcurrencyLimit(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	first := httptest.NewRecorder()
	go func() {
		defer wg.Done()
		handler.ServeHTTP(first, requestFrom("10.0.0.1:1"))
	}()
	<-entered

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("10.0.0.2:1"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Service busy, please try again"}`, w.Body.String())

	close(release)
	wg.Wait()
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestConcurrencyLimiter_Release(t *testing.T) {
	cl := NewConcurrencyLimiter(2)

	require.True(t, cl.Acquire())
	require.True(t, cl.Acquire())
	assert.False(t, cl.Acquire())
	assert.Equal(t, 2, cl.Active())

	cl.Release()
	assert.Equal(t, 1, cl.Active())
	assert.True(t, cl.Acquire())

	assert.Equal(t, 1, NewConcurrencyLimiter(0).max)
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusUnsupportedMediaType, "warn"},
		{http.StatusRequestEntityTooLarge, "warn"},
		{http.StatusBadGateway, "error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			buf := captureLog(t)

			w := httptest.NewRecorder()
			Logger(statusHandler(tt.status)).ServeHTTP(w, requestFrom("10.0.0.1:1"))

			lines := logLines(t, buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.level, lines[0]["level"])
			assert.Equal(t, float64(tt.status), lines[0]["status"])
			assert.Equal(t, "/optimize", lines[0]["path"])
		})
	}
}

func TestLogger_RecordsRoutePattern(t *testing.T) {
	captureLog(t)

	r := chi.NewRouter()
	r.Use(Logger)
	r.Get("/images/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	counter := metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/images/{id}", "200")
	before := counterValue(t, counter)

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/images/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, before+3, counterValue(t, counter))
}

func TestRoutePattern_WithoutRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	assert.Equal(t, "/raw/path", routePattern(req))
}

func TestResponseWrapper_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWrapper{ResponseWriter: rec, status: http.StatusOK}

	w.WriteHeader(http.StatusCreated)
	w.WriteHeader(http.StatusInternalServerError)
	n, err := w.Write([]byte("hello"))

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusCreated, w.status)
	assert.Equal(t, 5, w.bytes)
}

func TestRecovery(t *testing.T) {
	buf := captureLog(t)

	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("decoder exploded")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() { handler.ServeHTTP(w, requestFrom("10.0.0.1:1")) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "decoder exploded", lines[0]["panic"])
}

func TestSecurity(t *testing.T) {
	w := httptest.NewRecorder()
	Security(statusHandler(http.StatusOK)).ServeHTTP(w, requestFrom("10.0.0.1:1"))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'none'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "cross-origin", w.Header().Get("Cross-Origin-Resource-Policy"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "plain http")
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://admin.example.org"})(statusHandler(http.StatusOK))

	req := requestFrom("10.0.0.1:1")
	req.Header.Set("Origin", "https://admin.example.org")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "https://admin.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Reduction-Percent")

	req = requestFrom("10.0.0.1:1")
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
