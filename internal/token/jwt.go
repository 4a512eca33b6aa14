// Package token issues and validates the buyer session JWTs the HTTP layer
// authenticates with.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// Claims are the access-token claims.
type Claims struct {
	BuyerID string `json:"buyer_id"`
	jwt.RegisteredClaims
}

// Service signs and validates HS256 access tokens.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey string, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

func (s *Service) GenerateAccessToken(buyerID id.BuyerID, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		BuyerID: buyerID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning the buyer it names.
func (s *Service) ValidateToken(tokenString string) (id.BuyerID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.BuyerID{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return id.BuyerID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.BuyerID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	buyerID, err := id.ParseBuyerID(claims.BuyerID)
	if err != nil {
		return id.BuyerID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return buyerID, nil
}
