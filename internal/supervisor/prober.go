package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// HealthProber polls the backend health endpoint until it answers 200.
type HealthProber struct {
	url    string
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewHealthProber builds a prober for http://127.0.0.1:<port><path>.
func NewHealthProber(port int, path string, logger *zap.Logger) *HealthProber {
	client := retryablehttp.NewClient()
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	// The request context bounds total probing time; keep retrying until then.
	client.RetryMax = 1000
	client.Logger = nil
	client.HTTPClient.Timeout = 3 * time.Second

	return &HealthProber{
		url:    fmt.Sprintf("http://127.0.0.1:%d%s", port, path),
		client: client,
		logger: logger,
	}
}

// WaitReady blocks until the endpoint returns HTTP 200 or ctx ends.
func (p *HealthProber) WaitReady(ctx context.Context) error {
	p.logger.Debug("probing backend readiness", zap.String("url", p.url))

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}

	p.logger.Debug("backend is ready", zap.String("url", p.url))
	return nil
}
