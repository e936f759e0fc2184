package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

const (
	defaultTimeout              = 90 * time.Second
	errorBodyReadLimit    int64 = 1024
	generatePathTemplate        = "v1/generate/%s"
)

var (
	errBaseURLRequired = errors.New("generation base url is required")
	errAPIKeyRequired  = errors.New("generation api key is required")
)

// Client calls the external generation service over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a generation client for the given endpoint and key.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid generation base url: %w", err)
	}
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		baseURL:    trimmedURL,
		apiKey:     trimmedKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return client, nil
}

// Request is the payload sent for one generation call.
type Request struct {
	Action    string `json:"action"`
	Quantity  int    `json:"quantity"`
	Prompt    string `json:"prompt,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// Asset is a generated file hosted by the provider.
type Asset struct {
	URL  string `json:"url"`
	Kind string `json:"kind,omitempty"`
}

// Result is the provider output. Asset actions fill Assets, text actions fill Text.
type Result struct {
	Assets []Asset `json:"assets"`
	Text   string  `json:"text,omitempty"`
}

// URLs returns the asset urls in provider order.
func (r *Result) URLs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Assets))
	for _, a := range r.Assets {
		if u := strings.TrimSpace(a.URL); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Generate posts the request to {baseURL}/v1/generate/{action}.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "generation client not configured")
	}
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "generation action is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal generation request")
	}

	endpoint := c.buildURL(fmt.Sprintf(generatePathTemplate, url.PathEscape(action)))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build generation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute generation request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "generation request failed")
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode generation response")
	}
	if result.Assets == nil {
		result.Assets = []Asset{}
	}
	return &result, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
