package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DemoClaims is what the offline demo provider puts in its tokens.
type DemoClaims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	FullName string `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// MintUnsigned issues an alg=none token. It proves nothing and the API
// rejects it; it only lets offline sessions decode like real ones.
func MintUnsigned(userID, role, fullName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := DemoClaims{
		UserID:   userID,
		Role:     role,
		FullName: fullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "medsync-demo",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
}
