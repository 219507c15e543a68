package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims is the subset of the identity provider's access token we rely on.
type Claims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 access tokens signed with the provider's secret.
type Verifier struct {
	secret   []byte
	audience string
	parser   *jwt.Parser
}

func NewVerifier(secret, audience string) *Verifier {
	return &Verifier{
		secret:   []byte(secret),
		audience: audience,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify parses the token and returns the caller's identity.
//
// Member tokens must carry the configured audience and a UUID subject.
// Service-role keys carry neither; they yield an AuthContext with Role set
// to RoleAdmin and no UserID.
func (v *Verifier) Verify(raw string) (AuthContext, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AuthContext{}, ErrInvalidToken
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return AuthContext{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Role == RoleAdmin {
		return AuthContext{Role: RoleAdmin}, nil
	}

	if v.audience != "" && !slices.Contains(claims.Audience, v.audience) {
		return AuthContext{}, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return AuthContext{}, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}

	return AuthContext{
		UserID: id.String(),
		Email:  claims.Email,
		Name:   displayName(claims),
		Role:   claims.Role,
	}, nil
}

func displayName(c Claims) string {
	for _, key := range []string{"full_name", "name"} {
		if s, ok := c.UserMetadata[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if at := strings.IndexByte(c.Email, '@'); at > 0 {
		return c.Email[:at]
	}
	return ""
}
