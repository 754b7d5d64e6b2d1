package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

// TokenConfig carries the verification settings for access tokens issued by
// the enrollment application.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

// TokenValidator verifies HS256 bearer tokens. Issuance lives elsewhere.
type TokenValidator struct {
	config TokenConfig
}

// NewTokenValidator constructs a validator.
func NewTokenValidator(config TokenConfig) *TokenValidator {
	return &TokenValidator{config: config}
}

// ValidateToken parses and validates a JWT access token.
func (v *TokenValidator) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	if v.config.Secret == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token validation is not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if !v.audienceAccepted(claims.Audience) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token audience not accepted")
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is missing subject or role")
	}
	return claims, nil
}

func (v *TokenValidator) audienceAccepted(audience jwt.ClaimStrings) bool {
	if len(v.config.Audience) == 0 {
		return true
	}
	for _, want := range v.config.Audience {
		for _, got := range audience {
			if want == got {
				return true
			}
		}
	}
	return false
}
