// Package identity carries the caller identity asserted by a trusted upstream
// (gateway or auth proxy). Claims are bounded so a misbehaving upstream cannot
// inflate request state.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"
)

// Claim bounds.
const (
	MaxClaims        = 16
	MaxClaimKeyLen   = 64
	MaxClaimValueLen = 256
)

// Upstream headers.
const (
	HeaderUserID = "X-User-Id"
	HeaderEmail  = "X-User-Email"
	HeaderPlan   = "X-User-Plan"
	HeaderClaims = "X-User-Claims"
)

var (
	ErrTooManyClaims = errors.New("too many identity claims")
	ErrInvalidClaim  = errors.New("invalid identity claim")
)

// Claims is an immutable, bounded set of string claims.
type Claims struct {
	m map[string]string
}

// NewClaims validates and copies m.
func NewClaims(m map[string]string) (Claims, error) {
	if len(m) > MaxClaims {
		return Claims{}, fmt.Errorf("%w: %d > %d", ErrTooManyClaims, len(m), MaxClaims)
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if err := checkClaim(k, v); err != nil {
			return Claims{}, err
		}
		out[k] = v
	}
	return Claims{m: out}, nil
}

func checkClaim(k, v string) error {
	switch {
	case k == "":
		return fmt.Errorf("%w: empty key", ErrInvalidClaim)
	case utf8.RuneCountInString(k) > MaxClaimKeyLen:
		return fmt.Errorf("%w: key %.16q... exceeds %d characters", ErrInvalidClaim, k, MaxClaimKeyLen)
	case utf8.RuneCountInString(v) > MaxClaimValueLen:
		return fmt.Errorf("%w: value for %q exceeds %d characters", ErrInvalidClaim, k, MaxClaimValueLen)
	case !utf8.ValidString(k) || !utf8.ValidString(v):
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidClaim, k)
	}
	return nil
}

// Get returns a claim value.
func (c Claims) Get(key string) (string, bool) {
	v, ok := c.m[key]
	return v, ok
}

// Len returns the number of claims.
func (c Claims) Len() int {
	return len(c.m)
}

// Keys returns claim keys in sorted order.
func (c Claims) Keys() []string {
	return slices.Sorted(maps.Keys(c.m))
}

// Map returns a copy of the claims.
func (c Claims) Map() map[string]string {
	return maps.Clone(c.m)
}

func (c Claims) MarshalJSON() ([]byte, error) {
	if c.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.m)
}

// Identity is the authenticated caller.
type Identity struct {
	ID     string `json:"id"`
	Email  string `json:"email,omitempty"`
	Plan   string `json:"plan,omitempty"`
	Claims Claims `json:"claims"`
}

// Anonymous reports whether no caller was asserted.
func (id Identity) Anonymous() bool {
	return id.ID == ""
}

// FromHeaders reads an identity from upstream headers. The claims header is
// a comma-separated list of key=value pairs. ok is false when no user id is
// present.
func FromHeaders(h http.Header) (id Identity, ok bool, err error) {
	userID := strings.TrimSpace(h.Get(HeaderUserID))
	if userID == "" {
		return Identity{}, false, nil
	}

	raw := map[string]string{}
	if header := h.Get(HeaderClaims); header != "" {
		for _, pair := range strings.Split(header, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			k, v, found := strings.Cut(pair, "=")
			if !found {
				return Identity{}, false, fmt.Errorf("%w: %q is not key=value", ErrInvalidClaim, pair)
			}
			raw[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	claims, err := NewClaims(raw)
	if err != nil {
		return Identity{}, false, err
	}

	return Identity{
		ID:     userID,
		Email:  strings.TrimSpace(h.Get(HeaderEmail)),
		Plan:   strings.TrimSpace(h.Get(HeaderPlan)),
		Claims: claims,
	}, true, nil
}

type contextKey struct{}

// WithIdentity returns a new context with the identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity. ok is false for anonymous requests.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && !id.Anonymous()
}
