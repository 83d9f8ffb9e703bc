package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
)

var signingMethod = jwt.SigningMethodHS256

var (
	ErrMissingSecret  = errors.New("jwt secret is required")
	ErrMissingIssuer  = errors.New("jwt issuer is required")
	ErrCoachUnbound   = errors.New("coach token missing coach_id")
	errUnknownRole    = errors.New("unknown role")
	errNonPositiveTTL = errors.New("jwt expiration minutes must be positive")
)

// Claims is the access token the platform auth service hands to coaches and
// admins. Admin tokens may carry a nil CoachID.
type Claims struct {
	CoachID uuid.UUID  `json:"coach_id"`
	Role    enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims are checked during parsing.
func (c *Claims) Validate() error {
	if !c.Role.IsValid() {
		return fmt.Errorf("%w %q", errUnknownRole, c.Role)
	}
	if c.Role == enums.RoleCoach && c.CoachID == uuid.Nil {
		return ErrCoachUnbound
	}
	return nil
}

// UserID is the subject, falling back to the coach id for older tokens.
func (c *Claims) UserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	if c.CoachID != uuid.Nil {
		return c.CoachID.String()
	}
	return ""
}

// Verifier checks HS256 tokens against one secret and issuer.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.Issuer == "" {
		return nil, ErrMissingIssuer
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(30*time.Second),
		),
	}, nil
}

// Verify accepts the raw token or an "Authorization: Bearer" value.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	token := strings.TrimSpace(raw)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, jwt.ErrTokenMalformed
	}
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

// Grant describes who a minted token is for.
type Grant struct {
	Subject string
	CoachID uuid.UUID
	Role    enums.Role
	JTI     string
}

// Mint signs a token the way the platform auth service does. Only tooling and
// tests mint; the API only verifies.
func Mint(cfg config.JWTConfig, now time.Time, grant Grant) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", ErrMissingSecret
	case cfg.Issuer == "":
		return "", ErrMissingIssuer
	case cfg.ExpirationMinutes <= 0:
		return "", errNonPositiveTTL
	}

	subject := grant.Subject
	if subject == "" && grant.CoachID != uuid.Nil {
		subject = grant.CoachID.String()
	}
	jti := strings.TrimSpace(grant.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := &Claims{
		CoachID: grant.CoachID,
		Role:    grant.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}
	return jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
}
