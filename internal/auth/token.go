package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates short-lived access tokens.
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// GenerateAccessToken creates a signed access token with a unique JTI.
func (tm *TokenManager) GenerateAccessToken(userID, username, role string) (string, error) {
	now := time.Now()
	claims := &AccessClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken verifies signature and standard claims.
func (tm *TokenManager) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// TokenExpiryDecoder reads a bearer token's expiry claim without verifying
// the signature. The blacklist uses it only to size ledger entries; it is
// never a substitute for real validation.
type TokenExpiryDecoder interface {
	DecodeExpiry(tokenString string) (*time.Time, error)
}

// JWTExpiryDecoder decodes the exp claim from any JWT-shaped token.
type JWTExpiryDecoder struct {
	parser *jwt.Parser
}

func NewJWTExpiryDecoder() *JWTExpiryDecoder {
	return &JWTExpiryDecoder{parser: jwt.NewParser()}
}

// DecodeExpiry returns the exp claim, or an error when the token cannot be
// decoded or carries no expiry.
func (d *JWTExpiryDecoder) DecodeExpiry(tokenString string) (*time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("token has no expiry claim")
	}

	t := exp.Time
	return &t, nil
}
