package session

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/openkcm/api-client/pkg/apierr"
)

// maxExpiresIn is the largest lifetime in seconds a time.Duration can hold.
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// ParseCallbackURL extracts the AuthorizationResult from the URL the provider
// redirected to. Parameters are read from the query and from the fragment;
// the query wins when both carry the same parameter.
func ParseCallbackURL(raw string) (AuthorizationResult, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return AuthorizationResult{}, apierr.Config("parsing callback URL", err)
	}

	params := u.Query()
	if u.Fragment != "" {
		fragment, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return AuthorizationResult{}, apierr.Config("parsing callback URL fragment", err)
		}
		for k, v := range fragment {
			if !params.Has(k) {
				params[k] = v
			}
		}
	}

	res := AuthorizationResult{
		State: params.Get("state"),
	}

	if code := params.Get("error"); code != "" {
		res.ErrorCode = code
		res.ErrorDescription = params.Get("error_description")
		return res, nil
	}

	res.Code = params.Get("code")
	res.Token = params.Get("access_token")
	res.TokenType = params.Get("token_type")
	if res.Code == "" && res.Token == "" {
		return AuthorizationResult{}, apierr.Config("callback URL carries neither a result nor an error", nil)
	}

	if v := params.Get("expires_in"); v != "" {
		seconds, err := strconv.ParseInt(v, 10, 64)
		if err != nil || seconds < 0 || seconds > maxExpiresIn {
			return AuthorizationResult{}, apierr.Config(fmt.Sprintf("invalid expires_in %q", v), err)
		}
		res.ExpiresIn = time.Duration(seconds) * time.Second
	}

	res.OK = true

	return res, nil
}
