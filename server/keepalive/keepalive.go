// Package keepalive implements the periodic self-ping that keeps
// free-tier hosting platforms from idling the process. The pinger hits
// the service's own public health endpoint on a fixed interval; the
// default 14 minutes stays under the common 15 minute idle window.
package keepalive

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger periodically requests a URL to keep the hosting instance warm.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *zap.Logger
}

// New creates a pinger for the given URL and interval.
func New(url string, interval time.Duration, logger *zap.Logger) *Pinger {
	return &Pinger{
		url:      url,
		interval: interval,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run pings until the context is canceled. Failures are logged only;
// the next tick tries again.
func (p *Pinger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Keep-alive pinger started",
		zap.String("url", p.url),
		zap.Duration("interval", p.interval),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Keep-alive pinger stopped")
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

func (p *Pinger) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.Error("Keep-alive request creation failed", zap.Error(err))
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("Keep-alive ping failed", zap.Error(err))
		return
	}
	resp.Body.Close()

	p.logger.Debug("Keep-alive ping", zap.Int("status", resp.StatusCode))
}
