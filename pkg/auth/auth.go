// Package auth provides credentials applied to outgoing source requests.
//
//go:generate mockgen -destination=./mocks/auth.go . Authenticator
package auth

import (
	"net/http"

	"github.com/glorpus-work/mcbundle/pkg/errors"
)

// Authenticator applies credentials to a request before it is sent.
type Authenticator interface {
	Apply(req *http.Request) error
	Type() Type
}

// Type represents the type of authentication.
type Type string

// Authentication types.
const (
	// APIKeyType sends a key in a fixed request header.
	APIKeyType Type = "api-key"
)

// APIKey sends Key in the Header request header.
type APIKey struct {
	Header string
	Key    string
}

// Apply sets the key header. An empty key is rejected so requests are never
// sent anonymously to a source that needs one.
func (a APIKey) Apply(req *http.Request) error {
	if a.Key == "" {
		return errors.ErrMissingAPIKey
	}
	req.Header.Set(a.Header, a.Key)
	return nil
}

// Type returns APIKeyType.
func (a APIKey) Type() Type { return APIKeyType }
