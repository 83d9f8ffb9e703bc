package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/coachledger-backend/pkg/config"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "coachledger", ExpirationMinutes: 30}
}

func newVerifier(t *testing.T, cfg config.JWTConfig) *Verifier {
	t.Helper()
	v, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	return v
}

func TestMintAndVerify(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	coachID := uuid.New()

	token, err := Mint(cfg, now, Grant{CoachID: coachID, Role: enums.RoleCoach})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := newVerifier(t, cfg).Verify("Bearer " + token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.CoachID != coachID || claims.Role != enums.RoleCoach {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.UserID() != coachID.String() {
		t.Fatalf("expected subject to default to coach id, got %s", claims.UserID())
	}
	if got := claims.ExpiresAt.Sub(now.Add(30 * time.Minute)).Abs(); got >= time.Second {
		t.Fatalf("expiry off by %v", got)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	token, err := Mint(testJWTConfig(), time.Now(), Grant{Subject: "ops-1", Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := testJWTConfig()
	other.Secret = "different"
	if _, err := newVerifier(t, other).Verify(token); !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		t.Fatalf("expected signature failure, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := Mint(cfg, time.Now().Add(-2*time.Hour), Grant{CoachID: uuid.New(), Role: enums.RoleCoach})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := newVerifier(t, cfg).Verify(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestVerifyRejectsCoachWithoutID(t *testing.T) {
	cfg := testJWTConfig()
	claims := jwt.MapClaims{
		"role": string(enums.RoleCoach),
		"iss":  cfg.Issuer,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newVerifier(t, cfg).Verify(token); !errors.Is(err, ErrCoachUnbound) {
		t.Fatalf("expected unbound coach error, got %v", err)
	}
}

func TestVerifierRequiresConfig(t *testing.T) {
	if _, err := NewVerifier(config.JWTConfig{Issuer: "x"}); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected missing secret, got %v", err)
	}
	if _, err := NewVerifier(config.JWTConfig{Secret: "x"}); !errors.Is(err, ErrMissingIssuer) {
		t.Fatalf("expected missing issuer, got %v", err)
	}
	if _, err := newVerifier(t, testJWTConfig()).Verify("Bearer "); err == nil {
		t.Fatal("expected empty bearer to fail")
	}
}

func TestMintRejectsUnknownRole(t *testing.T) {
	if _, err := Mint(testJWTConfig(), time.Now(), Grant{Role: "owner"}); !errors.Is(err, errUnknownRole) {
		t.Fatalf("expected unknown role error, got %v", err)
	}
}
