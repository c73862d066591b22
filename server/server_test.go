package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/existlabs/gptbridge/server/handlers"
	"github.com/existlabs/gptbridge/server/metrics"
	"github.com/existlabs/gptbridge/server/telegram"
)

type echoCompleter struct{}

func (echoCompleter) Complete(ctx context.Context, text string) (string, error) {
	return "echo: " + text, nil
}

type routerFixture struct {
	router   *Router
	sent     *[]string
	shutdown func()
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	var sent []string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			var req struct {
				Text string `json:"text"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			sent = append(sent, req.Text)
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	t.Cleanup(api.Close)

	logger := zaptest.NewLogger(t)
	m := metrics.New()
	bot := telegram.NewClient("test-token", api.URL, logger)
	webhook := handlers.NewWebhookHandler(bot, echoCompleter{}, m, logger, "test-token", 4000)

	return &routerFixture{
		router: NewRouter(webhook, m, "test-model", logger),
		sent:   &sent,
	}
}

func (f *routerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRouterHealth(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test-model", resp["model"])
	assert.Contains(t, resp, "uptime_seconds")
}

func TestRouterStatus(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(http.MethodGet, "/status", "")

	assert.Equal(t, http.StatusOK, w.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int64(0), snap.TotalRequests)
	assert.Len(t, snap.ErrorsByCategory, 6)
}

func TestRouterMetrics(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gptbridge_errors_total")
}

func TestRouterWebhook(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(http.MethodPost, "/webhook/test-token", `{
		"update_id": 1,
		"message": {"message_id": 2, "chat": {"id": 42}, "text": "ping"}
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, []string{"echo: ping"}, *f.sent)
}

func TestRouterUnknownRoute(t *testing.T) {
	f := newRouterFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/nope", "").Code)
}
