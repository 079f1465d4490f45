package capability

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/regia-app/launcher/internal/domain"
)

// HTTP grants the UI layer outbound HTTP, optionally restricted to an
// allowlist of hosts. An empty allowlist permits any host.
type HTTP struct {
	client   *resty.Client
	allowed  map[string]bool
	required bool
}

// NewHTTP creates the http capability.
func NewHTTP(timeout time.Duration, allowedHosts []string, required bool) *HTTP {
	allowed := make(map[string]bool, len(allowedHosts))
	for _, host := range allowedHosts {
		allowed[host] = true
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "regia-launcher")

	return &HTTP{client: client, allowed: allowed, required: required}
}

func (h *HTTP) ID() domain.CapabilityID { return domain.CapabilityHTTP }
func (h *HTTP) Name() string            { return "HTTP requests" }
func (h *HTTP) Required() bool          { return h.required }

func (h *HTTP) Init(ctx context.Context) error {
	if h.client == nil {
		return fmt.Errorf("no HTTP client configured")
	}
	return nil
}

func (h *HTTP) Close() error { return nil }

// Do performs a request on behalf of the UI layer after host validation.
func (h *HTTP) Do(ctx context.Context, method, rawURL string, body []byte) (*resty.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if len(h.allowed) > 0 && !h.allowed[u.Hostname()] {
		return nil, fmt.Errorf("host %q is not in the http allowlist", u.Hostname())
	}

	req := h.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return req.Execute(method, rawURL)
}

// Ensure HTTP implements Descriptor.
var _ Descriptor = (*HTTP)(nil)
