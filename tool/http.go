package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ai "github.com/adolfousier/opencrab"
)

// HTTPToolOption configures the HTTP tool.
type HTTPToolOption func(*httpToolConfig)

type httpToolConfig struct {
	client          *http.Client
	allowedHosts    []string
	blockedHosts    []string
	maxResponseSize int64
	timeout         time.Duration
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPToolOption {
	return func(cfg *httpToolConfig) {
		cfg.client = c
	}
}

// WithAllowedHosts restricts requests to specific hosts only.
func WithAllowedHosts(hosts ...string) HTTPToolOption {
	return func(cfg *httpToolConfig) {
		cfg.allowedHosts = hosts
	}
}

// WithBlockedHosts blocks requests to specific hosts.
func WithBlockedHosts(hosts ...string) HTTPToolOption {
	return func(cfg *httpToolConfig) {
		cfg.blockedHosts = hosts
	}
}

// WithMaxResponseSize sets the maximum response body size.
// Default is 1MB.
func WithMaxResponseSize(bytes int64) HTTPToolOption {
	return func(cfg *httpToolConfig) {
		cfg.maxResponseSize = bytes
	}
}

// WithHTTPTimeout sets the request timeout.
// Default is 30 seconds.
func WithHTTPTimeout(d time.Duration) HTTPToolOption {
	return func(cfg *httpToolConfig) {
		cfg.timeout = d
	}
}

func applyHTTPOpts(opts []HTTPToolOption) *httpToolConfig {
	cfg := &httpToolConfig{
		maxResponseSize: 1024 * 1024, // 1MB default
		timeout:         30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.client == nil {
		cfg.client = &http.Client{Timeout: cfg.timeout}
	}
	return cfg
}

func (c *httpToolConfig) checkHost(urlStr string) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	for _, blocked := range c.blockedHosts {
		if strings.EqualFold(host, blocked) {
			return fmt.Errorf("host %q is blocked", host)
		}
	}
	if len(c.allowedHosts) > 0 {
		for _, allowed := range c.allowedHosts {
			if strings.EqualFold(host, allowed) {
				return nil
			}
		}
		return fmt.Errorf("host %q is not in the allowed list", host)
	}
	return nil
}

type httpRequestArgs struct {
	URL    string            `json:"url" desc:"URL to request" required:"true"`
	Method string            `json:"method" desc:"HTTP method" enum:"GET,POST,PUT,PATCH,DELETE,HEAD"`
	Body   string            `json:"body" desc:"Request body"`
	Header map[string]string `json:"header" desc:"Request headers"`
}

// HTTPRequestTool creates a tool that performs HTTP requests.
// It carries the network egress capability and requires approval.
func HTTPRequestTool(opts ...HTTPToolOption) Registration {
	cfg := applyHTTPOpts(opts)

	return Func("http_request", "Perform an HTTP request and return the response body",
		func(ctx context.Context, args httpRequestArgs) (string, error) {
			if err := cfg.checkHost(args.URL); err != nil {
				return "", err
			}

			method := args.Method
			if method == "" {
				method = http.MethodGet
			}

			var body io.Reader
			if args.Body != "" {
				body = strings.NewReader(args.Body)
			}

			req, err := http.NewRequestWithContext(ctx, method, args.URL, body)
			if err != nil {
				return "", err
			}
			for k, v := range args.Header {
				req.Header.Set(k, v)
			}

			resp, err := cfg.client.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(io.LimitReader(resp.Body, cfg.maxResponseSize))
			if err != nil {
				return "", err
			}

			return fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, data), nil
		},
		ai.CapabilityNetworkEgress,
	)
}
