package oidc

// Configuration. Usually accessible from the well-known openid-configuration URL.
// It's a subset of https://openid.net/specs/openid-connect-discovery-1_0.html#ProviderMetadata
type Configuration struct {
	Issuer                           string   `json:"issuer,omitempty"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                    string   `json:"token_endpoint,omitempty"`
	JwksURI                          string   `json:"jwks_uri,omitempty"`
	ResponseTypesSupported           []string `json:"response_types_supported,omitempty"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported,omitempty"`
	ScopesSupported                  []string `json:"scopes_supported,omitempty"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported,omitempty"`
}

// merge overrides the discovered values with the non-empty fields of o.
func (c Configuration) merge(o Configuration) Configuration {
	if o.AuthorizationEndpoint != "" {
		c.AuthorizationEndpoint = o.AuthorizationEndpoint
	}
	if o.TokenEndpoint != "" {
		c.TokenEndpoint = o.TokenEndpoint
	}
	if o.JwksURI != "" {
		c.JwksURI = o.JwksURI
	}

	return c
}
