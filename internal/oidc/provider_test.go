package oidc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localRoundTripper is an http.RoundTripper that executes HTTP transactions by
// using handler directly, instead of going over an HTTP connection.
type localRoundTripper struct {
	handler http.Handler
}

func (l localRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	w := httptest.NewRecorder()
	l.handler.ServeHTTP(w, req)
	return w.Result(), nil
}

func TestProvider_Configuration(t *testing.T) {
	const issuerURL = "https://idp.example.com"

	discovered := Configuration{
		Issuer:                issuerURL,
		AuthorizationEndpoint: issuerURL + "/oauth2/authorize",
		TokenEndpoint:         issuerURL + "/oauth2/token",
		JwksURI:               issuerURL + "/jwks.json",
	}

	tests := []struct {
		name      string
		endpoints Endpoints
		served    Configuration
		status    int
		want      Configuration
		wantErr   assert.ErrorAssertionFunc
	}{
		{
			name: "Static endpoints skip discovery",
			endpoints: Endpoints{
				AuthorizationEndpoint: "https://static/authorize",
				TokenEndpoint:         "https://static/token",
			},
			status: http.StatusInternalServerError,
			want: Configuration{
				AuthorizationEndpoint: "https://static/authorize",
				TokenEndpoint:         "https://static/token",
			},
			wantErr: assert.NoError,
		},
		{
			name:      "Discovery",
			endpoints: Endpoints{IssuerURL: issuerURL},
			served:    discovered,
			status:    http.StatusOK,
			want:      discovered,
			wantErr:   assert.NoError,
		},
		{
			name:      "Static values override discovered ones",
			endpoints: Endpoints{IssuerURL: issuerURL + "/", TokenEndpoint: "https://other/token"},
			served:    discovered,
			status:    http.StatusOK,
			want: Configuration{
				Issuer:                issuerURL,
				AuthorizationEndpoint: discovered.AuthorizationEndpoint,
				TokenEndpoint:         "https://other/token",
				JwksURI:               discovered.JwksURI,
			},
			wantErr: assert.NoError,
		},
		{
			name:      "Nothing configured",
			endpoints: Endpoints{},
			wantErr:   assert.Error,
		},
		{
			name:      "Invalid issuer URL",
			endpoints: Endpoints{IssuerURL: "+adf"},
			wantErr:   assert.Error,
		},
		{
			name:      "Issuer mismatch",
			endpoints: Endpoints{IssuerURL: issuerURL},
			served:    Configuration{Issuer: "https://evil.example.com", AuthorizationEndpoint: "https://evil/authorize"},
			status:    http.StatusOK,
			wantErr:   assert.Error,
		},
		{
			name:      "Discovery failure",
			endpoints: Endpoints{IssuerURL: issuerURL},
			status:    http.StatusNotFound,
			wantErr:   assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpClient := &http.Client{
				Transport: localRoundTripper{
					http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						assert.Equal(t, wellKnownPath, r.URL.Path)
						w.WriteHeader(tt.status)
						_ = json.NewEncoder(w).Encode(tt.served)
					}),
				},
			}

			p := NewProvider(tt.endpoints, httpClient)
			got, err := p.Configuration(t.Context())
			if !tt.wantErr(t, err) || err != nil {
				return
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_CachesDiscovery(t *testing.T) {
	var calls atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(Configuration{
			Issuer:                server.URL,
			AuthorizationEndpoint: server.URL + "/authorize",
		})
	}))
	defer server.Close()

	p := NewProvider(Endpoints{IssuerURL: server.URL}, server.Client())

	for range 3 {
		cfg, err := p.Configuration(t.Context())
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/authorize", cfg.AuthorizationEndpoint)
	}

	assert.Equal(t, int32(1), calls.Load())
}
