package auth

import (
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// --- Context Keys ---

// contextKey is a custom type used for context keys to avoid collisions.
type contextKey string

const ClientIDKey contextKey = "clientID"

// --- JWT Claims ---

// CustomClaims includes standard JWT claims plus the logging client's id.
// Tokens are issued out-of-band to the clients that log exchanges; there is
// no interactive login.
type CustomClaims struct {
	ClientID uuid.UUID `json:"client_id"`
	jwt.RegisteredClaims
}

// NewAccessToken generates a new JWT access token for a logging client.
func NewAccessToken(clientID uuid.UUID, jwtSecret string, expiration time.Duration) (string, error) {
	claims := CustomClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "chatvault-backend",
			Subject:   clientID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		log.Printf("Error signing JWT token for client %s: %v", clientID, err)
		return "", err
	}

	return signedToken, nil
}
