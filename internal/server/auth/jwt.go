// Package auth issues and verifies device tokens for the sync endpoint.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the device the token was issued to.
type Claims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"device_id"`
}

// GenerateToken signs an HS256 token for deviceID. A non-positive validity
// issues a token without expiry.
func GenerateToken(deviceID string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Subject:  deviceID,
		},
		DeviceID: deviceID,
	}
	if validity > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(validity))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

// GetDeviceIDFromToken verifies tokenString and returns its device ID.
// Expired tokens yield common.ErrTokenExpired, anything else invalid
// common.ErrInvalidToken.
func GetDeviceIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.DeviceID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.DeviceID, nil
}
