package keepalive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestPingerHitsURLOnInterval(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	New(srv.URL, 20*time.Millisecond, zaptest.NewLogger(t)).Run(ctx)

	assert.GreaterOrEqual(t, hits.Load(), int32(2), "expected multiple pings before cancellation")
}

func TestPingerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		New("http://127.0.0.1:1/health", time.Hour, zaptest.NewLogger(t)).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pinger did not stop on context cancellation")
	}
}

func TestPingerContinuesAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	New(srv.URL, 20*time.Millisecond, zaptest.NewLogger(t)).Run(ctx)

	assert.GreaterOrEqual(t, hits.Load(), int32(2), "failures must not stop the loop")
}
