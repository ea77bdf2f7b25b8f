// HTTP Fetch Tool.
//
// Information Hiding:
// - HTTP client implementation details hidden
// - Domain allow-list enforcement hidden
// - Body size limits hidden

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FetchTool performs HTTP GET requests and returns the response body.
type FetchTool struct {
	client         *http.Client
	timeoutSecs    uint64
	maxBody        int64
	allowedDomains []string
}

// NewFetchTool creates a fetch tool with the given timeout.
func NewFetchTool(timeoutSecs uint64) *FetchTool {
	if timeoutSecs == 0 {
		timeoutSecs = DefaultToolTimeout
	}
	return &FetchTool{
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
		maxBody:     DefaultMaxBodySize,
	}
}

// WithAllowedDomains restricts requests to the given domains and their subdomains.
func (t *FetchTool) WithAllowedDomains(domains []string) *FetchTool {
	t.allowedDomains = domains
	return t
}

// WithMaxBody caps the number of body bytes returned.
func (t *FetchTool) WithMaxBody(n int64) *FetchTool {
	if n > 0 {
		t.maxBody = n
	}
	return t
}

// Descriptor returns the tool descriptor.
func (t *FetchTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        "fetch_url",
		Description: "Fetch a web page or API response over HTTP GET",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "Absolute http or https URL to fetch"}
			},
			"required": ["url"]
		}`),
	}
}

type fetchArgs struct {
	URL string `json:"url"`
}

type fetchResult struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
	Truncated   bool   `json:"truncated,omitempty"`
}

// Execute fetches the URL. Non-2xx responses are faults.
func (t *FetchTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a fetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if a.URL == "" {
		return nil, fmt.Errorf("%w: URL cannot be empty", ErrInvalidArguments)
	}

	u, err := url.Parse(a.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: '%s' is not an http(s) URL", ErrInvalidArguments, a.URL)
	}
	if !t.isDomainAllowed(u) {
		return nil, fmt.Errorf("access to domain in '%s' is not allowed", a.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("request timed out after %d seconds", t.timeoutSecs)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	truncated := int64(len(body)) > t.maxBody
	if truncated {
		body = body[:t.maxBody]
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	return json.Marshal(fetchResult{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        strings.ToValidUTF8(string(body), ""),
		Truncated:   truncated,
	})
}

// isDomainAllowed checks the parsed host against the allow-list.
// An empty list allows every host.
func (t *FetchTool) isDomainAllowed(u *url.URL) bool {
	if len(t.allowedDomains) == 0 {
		return true
	}
	host := u.Hostname()
	for _, domain := range t.allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

var _ Tool = (*FetchTool)(nil)
