package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	"github.com/open-builders/exmatrikulator-bot/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(opts Options) *gin.Engine {
	opts.Logger = zerolog.Nop()
	opts.Debug = true
	return NewRouter(opts)
}

func serve(r nethttp.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndLive(t *testing.T) {
	r := newTestRouter(Options{})

	rec := serve(r, nethttp.MethodGet, "/health", "", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(r, nethttp.MethodGet, "/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
}

func TestReady(t *testing.T) {
	healthy := Check{Name: "postgres", Ping: func(context.Context) error { return nil }}
	broken := Check{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	rec := serve(newTestRouter(Options{Checks: []Check{healthy}}), nethttp.MethodGet, "/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	rec = serve(newTestRouter(Options{Checks: []Check{healthy, broken}}), nethttp.MethodGet, "/ready", "", nil)
	assert.Equal(t, nethttp.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis unavailable")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ChallengesIssued.Inc()

	rec := serve(newTestRouter(Options{Metrics: reg}), nethttp.MethodGet, "/metrics", "", nil)
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bot_challenges_issued_total 1")
}

func TestWebhook(t *testing.T) {
	events := make(chan chat.Event, 1)
	r := newTestRouter(Options{Webhook: NewWebhookHandler("s3cret", events)})
	update := `{"update_id":9,"callback_query":{"id":"cb","from":{"id":42,"first_name":"Ann"},"data":"notabot_42"}}`

	t.Run("wrong secret", func(t *testing.T) {
		rec := serve(r, nethttp.MethodPost, WebhookPath, update, map[string]string{WebhookSecretHeader: "nope"})
		assert.Equal(t, nethttp.StatusUnauthorized, rec.Code)
		assert.Empty(t, events)
	})

	t.Run("missing secret", func(t *testing.T) {
		rec := serve(r, nethttp.MethodPost, WebhookPath, update, nil)
		assert.Equal(t, nethttp.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := serve(r, nethttp.MethodPost, WebhookPath, "{", map[string]string{
			WebhookSecretHeader: "s3cret",
			"Content-Type":      "application/json",
		})
		assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	})

	t.Run("forwards update", func(t *testing.T) {
		rec := serve(r, nethttp.MethodPost, WebhookPath, update, map[string]string{
			WebhookSecretHeader: "s3cret",
			"Content-Type":      "application/json",
		})
		assert.Equal(t, nethttp.StatusOK, rec.Code)

		select {
		case ev := <-events:
			cb, ok := ev.(chat.CallbackResponse)
			require.True(t, ok)
			assert.Equal(t, "notabot_42", cb.Token)
		case <-time.After(time.Second):
			t.Fatal("update was not forwarded")
		}
	})
}

func TestWebhookNotRegisteredWithoutHandler(t *testing.T) {
	rec := serve(newTestRouter(Options{}), nethttp.MethodPost, WebhookPath, "{}", nil)
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)
}

func TestRecoveryReturnsInternalError(t *testing.T) {
	r := newTestRouter(Options{})
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := serve(r, nethttp.MethodGet, "/boom", "", nil)
	assert.Equal(t, nethttp.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := NewServer(Options{Addr: "127.0.0.1:0", Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
