// Package gateway performs calls against the SlashID REST API: it attaches the
// organization credentials, unwraps the {"result": ...} envelope and turns
// failed responses into problems.Error values.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"slashid/pkg/problems"
)

const (
	HeaderOrgID  = "SlashID-OrgID"
	HeaderAPIKey = "SlashID-API-Key"

	contentTypeJSON = "application/json"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is safe for concurrent use. It holds no state between calls besides
// the injected Doer.
type Client struct {
	env     Environment
	base    *url.URL
	creds   Credentials
	doer    Doer
	timeout time.Duration
	log     *zap.SugaredLogger
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client) error

// WithDoer injects the transport used for every call.
func WithDoer(d Doer) Option {
	return func(c *Client) error {
		c.doer = d
		return nil
	}
}

// WithTimeout sets the timeout of the default transport. It has no effect
// when WithDoer is used.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

// WithMetrics records call counts and latency.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// WithBaseURL points the client at a different API root, e.g. a proxy or a
// local stand-in. The environment is still validated.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing base url: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.base = u
		return nil
	}
}

// New validates env before anything else and builds a Client.
func New(env Environment, creds Credentials, opts ...Option) (*Client, error) {
	if _, err := ParseEnvironment(string(env)); err != nil {
		return nil, err
	}
	base, _ := url.Parse(env.BaseURL())
	c := &Client{
		env:     env,
		base:    base,
		creds:   creds,
		timeout: 30 * time.Second,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.doer == nil {
		c.doer = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c, nil
}

func (c *Client) Environment() Environment { return c.env }
func (c *Client) OrganizationID() string   { return c.creds.OrganizationID }

// APIURL returns the API root without the trailing slash.
func (c *Client) APIURL() string { return strings.TrimSuffix(c.base.String(), "/") }

// URL returns the absolute URL of path.
func (c *Client) URL(path string) string {
	u, err := c.resolve(path, nil)
	if err != nil {
		return ""
	}
	return u.String()
}

// Call performs one API call and returns the unwrapped result. The result is
// nil when the response has no body, is not a JSON object or has no "result"
// key.
func (c *Client) Call(ctx context.Context, method, path string, query Query, body any) (json.RawMessage, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	raw, err := c.send(ctx, method, path, query, contentTypeJSON, rdr)
	if err != nil {
		return nil, err
	}
	return unwrap(raw)
}

func (c *Client) Get(ctx context.Context, path string, query Query) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPatch, path, nil, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodPut, path, nil, body)
}

func (c *Client) Delete(ctx context.Context, path string, query Query) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodDelete, path, query, nil)
}

// Upload posts content as a single multipart file field and returns the
// unwrapped result.
func (c *Client) Upload(ctx context.Context, path, field, filename string, content []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("creating multipart field: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("writing multipart field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}
	raw, err := c.send(ctx, http.MethodPost, path, nil, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	return unwrap(raw)
}

// Fetch GETs path and returns the body as is, for endpoints that do not use
// the result envelope.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	return c.send(ctx, http.MethodGet, path, nil, contentTypeJSON, nil)
}

func (c *Client) resolve(path string, query Query) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", path, err)
	}
	u := c.base.ResolveReference(ref)
	u.RawQuery = query.Encode()
	return u, nil
}

func (c *Client) send(ctx context.Context, method, path string, query Query, contentType string, body io.Reader) ([]byte, error) {
	u, err := c.resolve(path, query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderOrgID, c.creds.OrganizationID)
	req.Header.Set(HeaderAPIKey, c.creds.APIKey)

	target := u.RequestURI()
	start := time.Now()
	resp, err := c.doer.Do(req)
	if err != nil {
		c.metrics.observe(method, "error", time.Since(start))
		c.log.Debugw("slashid request failed", "method", method, "target", target, "err", err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.observe(method, strconv.Itoa(resp.StatusCode), elapsed)
	c.log.Debugw("slashid request", "method", method, "target", target, "status", resp.StatusCode, "duration", elapsed)
	if err != nil {
		return nil, fmt.Errorf("reading response of %s %s: %w", method, target, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}

	statusErr := &StatusError{Method: method, Target: target, StatusCode: resp.StatusCode, Body: raw}
	if pe := problems.Classify(resp.StatusCode, raw, method, target, statusErr); pe.Kind != problems.Unclassified {
		return nil, pe
	}
	return nil, statusErr
}

type envelope struct {
	Result json.RawMessage `json:"result"`
}

func unwrap(raw []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Successful calls whose body is not an envelope carry no result.
		return nil, nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, nil
	}
	return env.Result, nil
}

// Decode unmarshals an unwrapped result into T. An absent result yields the
// zero value.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding result: %w", err)
	}
	return out, nil
}
