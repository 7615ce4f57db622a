// Package auth resolves the acting identity from bearer access tokens.
// Tokens are HS256 JWTs carrying the external provider's user id; issuing is
// the provider's concern, this package only verifies and extracts.
package auth

import (
	"time"

	"github.com/dotkom/vengeful/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the external user id of the
// caller.
type Claims struct {
	jwt.RegisteredClaims
	OWUserID int64 `json:"ow_user_id"`
}

// GenerateToken mints a signed access token for the given external user id.
// Used by tooling and tests; the production issuer is the provider.
func GenerateToken(owUserID int64, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		OWUserID: owUserID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetOWUserIDFromToken verifies the token signature and returns the external
// user id it carries. Any parse or verification failure maps to
// common.ErrInvalidAccessToken.
func GetOWUserIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return 0, common.ErrInvalidAccessToken
	}

	if !token.Valid || claims.OWUserID == 0 {
		return 0, common.ErrInvalidAccessToken
	}

	return claims.OWUserID, nil
}
