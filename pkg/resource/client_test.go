package resource_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/api-client/pkg/apierr"
	"github.com/openkcm/api-client/pkg/resource"
	"github.com/openkcm/api-client/pkg/session"
)

type credentials struct {
	sess *session.Session
	err  error
}

func (c credentials) Session(context.Context) (*session.Session, error) {
	return c.sess, c.err
}

type recorded struct {
	method, path, query, auth, contentType string
	body                                   []byte
}

func startAPI(t *testing.T, status int, response string) (*httptest.Server, <-chan recorded) {
	t.Helper()

	calls := make(chan recorded, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		select {
		case calls <- recorded{
			method:      r.Method,
			path:        r.URL.EscapedPath(),
			query:       r.URL.RawQuery,
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		}:
		default:
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	return server, calls
}

func TestClient_Requests(t *testing.T) {
	sess := &session.Session{Credential: "T1", TokenType: "Bearer"}

	tests := []struct {
		name     string
		call     func(ctx context.Context, c *resource.Client) (json.RawMessage, error)
		response string
		wantCall recorded
		wantRaw  string
	}{
		{
			name: "List",
			call: func(ctx context.Context, c *resource.Client) (json.RawMessage, error) {
				return c.List(ctx, url.Values{"limit": {"10"}})
			},
			response: `[{"id":"a1"}]`,
			wantCall: recorded{method: http.MethodGet, path: "/v1/actions", query: "limit=10"},
			wantRaw:  `[{"id":"a1"}]`,
		},
		{
			name: "Get escapes the id",
			call: func(ctx context.Context, c *resource.Client) (json.RawMessage, error) {
				return c.Get(ctx, "a/1")
			},
			response: `{"id":"a/1"}`,
			wantCall: recorded{method: http.MethodGet, path: "/v1/actions/a%2F1"},
			wantRaw:  `{"id":"a/1"}`,
		},
		{
			name: "Create",
			call: func(ctx context.Context, c *resource.Client) (json.RawMessage, error) {
				return c.Create(ctx, map[string]string{"name": "n"})
			},
			response: `{"id":"a2"}`,
			wantCall: recorded{method: http.MethodPost, path: "/v1/actions", contentType: "application/json", body: []byte(`{"name":"n"}`)},
			wantRaw:  `{"id":"a2"}`,
		},
		{
			name: "Update",
			call: func(ctx context.Context, c *resource.Client) (json.RawMessage, error) {
				return c.Update(ctx, "a2", map[string]string{"name": "m"})
			},
			response: `{"id":"a2"}`,
			wantCall: recorded{method: http.MethodPut, path: "/v1/actions/a2", contentType: "application/json", body: []byte(`{"name":"m"}`)},
			wantRaw:  `{"id":"a2"}`,
		},
		{
			name: "Delete",
			call: func(ctx context.Context, c *resource.Client) (json.RawMessage, error) {
				return nil, c.Delete(ctx, "a2")
			},
			wantCall: recorded{method: http.MethodDelete, path: "/v1/actions/a2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := startAPI(t, http.StatusOK, tt.response)
			c := resource.NewClient(resource.Actions, server.URL+"/v1/", credentials{sess: sess}, server.Client())

			raw, err := tt.call(t.Context(), c)
			require.NoError(t, err)
			rec := <-calls
			if tt.wantRaw != "" {
				assert.JSONEq(t, tt.wantRaw, string(raw))
			} else {
				assert.Nil(t, raw)
			}

			assert.Equal(t, tt.wantCall.method, rec.method)
			assert.Equal(t, tt.wantCall.path, rec.path)
			assert.Equal(t, tt.wantCall.query, rec.query)
			assert.Equal(t, tt.wantCall.contentType, rec.contentType)
			assert.Equal(t, "Bearer T1", rec.auth)
			if tt.wantCall.body != nil {
				assert.JSONEq(t, string(tt.wantCall.body), string(rec.body))
			}
		})
	}
}

func TestClient_DefaultTokenType(t *testing.T) {
	server, calls := startAPI(t, http.StatusOK, `[]`)
	c := resource.NewClient(resource.Datasets, server.URL, credentials{sess: &session.Session{Credential: "T1"}}, server.Client())

	_, err := c.List(t.Context(), nil)
	require.NoError(t, err)
	rec := <-calls
	assert.Equal(t, "Bearer T1", rec.auth)
	assert.Equal(t, "/datasets", rec.path)
	assert.Equal(t, resource.Datasets, c.Name())
}

func TestClient_Errors(t *testing.T) {
	storageErr := errors.New("storage down")

	tests := []struct {
		name    string
		creds   credentials
		status  int
		closed  bool
		baseURL string
		wantErr error
	}{
		{
			name:    "Logged out",
			creds:   credentials{},
			status:  http.StatusOK,
			wantErr: apierr.ErrUnauthenticated,
		},
		{
			name:    "Session lookup fails",
			creds:   credentials{err: storageErr},
			status:  http.StatusOK,
			wantErr: apierr.ErrStorage,
		},
		{
			name:    "Credential rejected",
			creds:   credentials{sess: &session.Session{Credential: "T1"}},
			status:  http.StatusUnauthorized,
			wantErr: apierr.ErrUnauthenticated,
		},
		{
			name:    "Server error",
			creds:   credentials{sess: &session.Session{Credential: "T1"}},
			status:  http.StatusInternalServerError,
			wantErr: apierr.ErrNetwork,
		},
		{
			name:    "Server unreachable",
			creds:   credentials{sess: &session.Session{Credential: "T1"}},
			status:  http.StatusOK,
			closed:  true,
			wantErr: apierr.ErrNetwork,
		},
		{
			name:    "No base URL",
			creds:   credentials{sess: &session.Session{Credential: "T1"}},
			status:  http.StatusOK,
			baseURL: "-",
			wantErr: apierr.ErrConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := startAPI(t, tt.status, `{"error":"boom"}`)
			baseURL := server.URL
			if tt.baseURL == "-" {
				baseURL = ""
			}
			if tt.closed {
				server.Close()
			}

			c := resource.NewClient(resource.Actions, baseURL, tt.creds, server.Client())
			_, err := c.Get(t.Context(), "a1")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_StatusErrorCause(t *testing.T) {
	server, _ := startAPI(t, http.StatusNotFound, `{"error":"not found"}`)
	c := resource.NewClient(resource.Actions, server.URL, credentials{sess: &session.Session{Credential: "T1"}}, server.Client())

	_, err := c.Get(t.Context(), "missing")
	require.ErrorIs(t, err, apierr.ErrNetwork)

	var statusErr *resource.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.JSONEq(t, `{"error":"not found"}`, string(statusErr.Body))
}
