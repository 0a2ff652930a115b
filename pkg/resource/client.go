// Package resource is the HTTP client behind the actions and datasets
// collaborators. It attaches the session credential to every request and
// hands response bodies back untouched.
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/api-client/pkg/apierr"
	"github.com/openkcm/api-client/pkg/session"
)

const (
	Actions  = "actions"
	Datasets = "datasets"

	defaultTokenType = "Bearer"
	maxErrorBody     = 4 << 10

	instrumentationName = "github.com/openkcm/api-client/pkg/resource"
)

// CredentialSource returns the current session, nil when logged out.
type CredentialSource interface {
	Session(ctx context.Context) (*session.Session, error)
}

// StatusError is the cause of a NetworkError raised for a non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, bytes.TrimSpace(e.Body))
}

type Client struct {
	name        string
	baseURL     string
	credentials CredentialSource
	httpClient  *http.Client

	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Int64Histogram
}

func NewClient(name, baseURL string, credentials CredentialSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		name:        name,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		credentials: credentials,
		httpClient:  httpClient,
		tracer:      otel.Tracer(instrumentationName),
	}

	meter := otel.Meter(instrumentationName, metric.WithInstrumentationVersion(otel.Version()))

	var err error
	c.requests, err = meter.Int64Counter(
		"api_client.request_count",
		metric.WithDescription("Outgoing API request count"),
		metric.WithUnit("request"),
	)
	if err != nil {
		slogctx.Warn(context.Background(), "Creating request_count meter", "error", err)
	}

	c.duration, err = meter.Int64Histogram(
		"api_client.duration",
		metric.WithDescription("Outgoing API request duration"),
		metric.WithUnit("milliseconds"),
	)
	if err != nil {
		slogctx.Warn(context.Background(), "Creating duration meter", "error", err)
	}

	return c
}

func (c *Client) Name() string { return c.name }

func (c *Client) List(ctx context.Context, query url.Values) (json.RawMessage, error) {
	path := ""
	if len(query) > 0 {
		path = "?" + query.Encode()
	}

	return c.Do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Get(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, "/"+url.PathEscape(id), nil)
}

func (c *Client) Create(ctx context.Context, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, "", body)
}

func (c *Client) Update(ctx context.Context, id string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, "/"+url.PathEscape(id), body)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.Do(ctx, http.MethodDelete, "/"+url.PathEscape(id), nil)
	return err
}

// Do sends method to the collection URL followed by path. A non-nil body is
// encoded as JSON.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, c.name+"-request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("collection", c.name),
			attribute.String("http.method", method),
		),
	)
	defer span.End()

	start := time.Now()
	raw, status, err := c.do(ctx, method, path, body)

	attrs := metric.WithAttributes(
		attribute.String("collection", c.name),
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	)
	if c.requests != nil {
		c.requests.Add(ctx, 1, attrs)
	}
	if c.duration != nil {
		c.duration.Record(ctx, time.Since(start).Milliseconds(), attrs)
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return raw, nil
}

// do returns the HTTP status, 0 when no response was received.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, int, error) {
	sess, err := c.credentials.Session(ctx)
	if err != nil {
		return nil, 0, apierr.Wrap(err, apierr.KindStorage, "reading session")
	}
	if sess == nil {
		return nil, 0, apierr.Unauthenticated(c.name+": no valid session", nil)
	}

	if c.baseURL == "" {
		return nil, 0, apierr.Config(c.name+": no API base URL is configured", nil)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, apierr.Config(c.name+": encoding request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+c.name+path, reader)
	if err != nil {
		return nil, 0, apierr.Config(c.name+": creating request", err)
	}

	tokenType := sess.TokenType
	if tokenType == "" {
		tokenType = defaultTokenType
	}
	req.Header.Set("Authorization", tokenType+" "+sess.Credential)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, apierr.Network(c.name+": executing request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, apierr.Unauthenticated(c.name+": credential rejected", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slogctx.Debug(ctx, "API request failed", "collection", c.name, "method", method, "status", resp.StatusCode)
		return nil, resp.StatusCode, apierr.Network(fmt.Sprintf("%s: %s returned status %d", c.name, method, resp.StatusCode),
			&StatusError{StatusCode: resp.StatusCode, Body: errBody})
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apierr.Network(c.name+": reading response", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, resp.StatusCode, nil
	}

	return json.RawMessage(raw), resp.StatusCode, nil
}
