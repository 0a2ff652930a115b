// Package pkce generates the random values of an authorization attempt: the
// state nonce and the RFC 7636 verifier/challenge pair.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
)

const (
	MethodS256 = "S256"

	// StateLength gives about 382 bits of entropy over a 63-symbol alphabet.
	StateLength = 64

	verifierBytes = 32
	stateAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"
)

type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

type Source struct{}

// State returns a fresh single-use nonce.
func (Source) State() string {
	ret := make([]byte, StateLength)
	limit := big.NewInt(int64(len(stateAlphabet)))
	for i := range ret {
		num, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("pkce: reading random source: " + err.Error())
		}
		ret[i] = stateAlphabet[num.Int64()]
	}

	return string(ret)
}

func (Source) PKCE() PKCE {
	raw := make([]byte, verifierBytes)
	_, _ = rand.Read(raw) // never fails, see crypto/rand.Read

	verifier := base64.RawURLEncoding.EncodeToString(raw)

	return PKCE{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
		Method:    MethodS256,
	}
}

// Challenge derives the S256 code challenge of verifier.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
