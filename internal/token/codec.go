// Package token reads the claims segment of bearer tokens issued by the
// MedSync auth API.
//
// Nothing here verifies signatures or expiry. Decoded claims are advisory:
// they pick greetings and help diagnostics, and must never be the only check
// in front of a sensitive action. The API re-validates every bearer token.
package token

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload segment of a token. A nil Claims means the
// token could not be read; all accessors are safe on nil.
type Claims map[string]any

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode returns the claims carried in the second segment of raw, or nil
// when raw is not a readable token. It never panics and never returns an
// error: a malformed token simply has no claims.
func Decode(raw string) (claims Claims) {
	defer func() {
		if recover() != nil {
			claims = nil
		}
	}()

	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) < 2 {
		return nil
	}

	// Accept both alphabets: the segment is normally base64url, but some
	// issuers emit standard base64.
	segment := strings.NewReplacer("+", "-", "/", "_").Replace(parts[1])
	payload, err := segmentParser.DecodeSegment(segment)
	if err != nil {
		return nil
	}

	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil || out == nil {
		return nil
	}
	return Claims(out)
}

// FullNameFromToken returns full_name, name or given_name, in that order.
func FullNameFromToken(raw string) string {
	return Decode(raw).FullName()
}

func (c Claims) FullName() string {
	return c.first("full_name", "name", "given_name")
}

// Role is the raw role claim; callers decide how to interpret it.
func (c Claims) Role() string {
	return c.first("role", "user_role", "https://schemas/role")
}

// UserID checks user_id, userId and sub, then a nested user object.
func (c Claims) UserID() string {
	if id := c.first("user_id", "userId", "sub"); id != "" {
		return id
	}
	if nested, ok := c["user"].(map[string]any); ok {
		return Claims(nested).first("userId", "id")
	}
	return ""
}

func (c Claims) String(key string) string {
	switch v := c[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64, bool:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

func (c Claims) first(keys ...string) string {
	for _, k := range keys {
		if v := c.String(k); v != "" {
			return v
		}
	}
	return ""
}
