package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/gasflow/ops-console/pkg/config"
	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

func TestMintAndParseOperatorToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "ops-console"}
	now := time.Now().UTC()

	token, err := MintOperatorToken(cfg, now, 30*time.Minute, OperatorTokenPayload{
		OperatorID: "op-1",
		Name:       "Wanjiru",
		Role:       enums.OperatorRoleAgency,
		AgencyID:   "agency-7",
	})
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}

	claims, err := ParseOperatorToken(cfg, token)
	if err != nil {
		t.Fatalf("parse operator token: %v", err)
	}
	if claims.OperatorID != "op-1" || claims.Subject != "op-1" {
		t.Fatalf("unexpected operator id %q / subject %q", claims.OperatorID, claims.Subject)
	}
	if claims.Role != enums.OperatorRoleAgency {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.AgencyID != "agency-7" {
		t.Fatalf("unexpected agency %q", claims.AgencyID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be generated")
	}
}

func TestMintOperatorTokenValidation(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "ops-console"}
	now := time.Now()

	if _, err := MintOperatorToken(cfg, now, time.Minute, OperatorTokenPayload{OperatorID: "op", Role: "driver"}); err == nil {
		t.Fatal("expected invalid role to fail")
	}
	if _, err := MintOperatorToken(cfg, now, 0, OperatorTokenPayload{OperatorID: "op", Role: enums.OperatorRoleAdmin}); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
	if _, err := MintOperatorToken(config.JWTConfig{Issuer: "x"}, now, time.Minute, OperatorTokenPayload{OperatorID: "op", Role: enums.OperatorRoleAdmin}); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestParseOperatorTokenRejectsExpiredAndForeignIssuer(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "ops-console"}
	payload := OperatorTokenPayload{OperatorID: "op-1", Role: enums.OperatorRoleAdmin}

	expired, err := MintOperatorToken(cfg, time.Now().Add(-2*time.Hour), time.Hour, payload)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseOperatorToken(cfg, expired); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}

	other, err := MintOperatorToken(config.JWTConfig{Secret: "secret", Issuer: "someone-else"}, time.Now(), time.Hour, payload)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseOperatorToken(cfg, other); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestParseOperatorTokenRejectsUnknownRole(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "ops-console"}
	claims := OperatorClaims{
		OperatorID: "op-1",
		Role:       "driver",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseOperatorToken(cfg, signed); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}
