package server

import (
	"net/http"
	"time"

	"github.com/apporbit/apporbit/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "apporbit"
	tokenAudience = "access"

	// Leeway for JWT expiration checks.
	jwtLeeway = 5 * time.Second
)

// Overridden in tests to validate expiry behavior.
var timeFunc = time.Now

// ErrInvalidToken is returned when a bearer token fails validation for any
// reason: bad signature, wrong issuer or audience, or expiry.
var ErrInvalidToken = errors.NewC("invalid bearer token", http.StatusUnauthorized).
	WithPublicMessage("Your session is no longer valid, please sign in again")

// Claims carried in an AppOrbit bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Photo string `json:"photo,omitempty"`
}

// Identity is the authenticated principal extracted from a bearer token.
type Identity struct {
	// Identity provider specific identifier. Maps to the `sub` JWT claim.
	UID string

	// The email address the identity provider asserted. Keys the user record.
	Email string

	Name  string
	Photo string
}

// IssueToken creates a signed bearer token for the given identity. Both
// issuer and audience are fixed to this service; tokens created elsewhere
// will not parse.
func IssueToken(key []byte, id Identity, expiry time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UID,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(timeFunc()),
			ExpiresAt: jwt.NewNumericDate(timeFunc().Add(expiry)),
		},
		Email: id.Email,
		Name:  id.Name,
		Photo: id.Photo,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, 0).WithHTTPStatusCode(http.StatusInternalServerError)
	}
	return ss, nil
}

// ParseToken validates a signed bearer token and returns the identity encoded
// within. Invalid and expired tokens will error.
func ParseToken(key []byte, tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return key, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithLeeway(jwtLeeway),
		jwt.WithTimeFunc(timeFunc),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return Identity{}, errors.WrapPrefix(ErrInvalidToken, err.Error(), 0)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, errors.Mark(ErrInvalidToken, 0).Append("invalid claims")
	}
	if claims.Email == "" {
		return Identity{}, errors.Mark(ErrInvalidToken, 0).Append("missing email claim")
	}
	return Identity{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Photo: claims.Photo,
	}, nil
}
