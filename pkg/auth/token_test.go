package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "ingresso",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	buyerID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		BuyerID: buyerID,
		Role:    enums.RoleOrganizer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.BuyerID != buyerID {
		t.Fatalf("expected buyer_id %s, got %s", buyerID, claims.BuyerID)
	}
	if claims.Role != enums.RoleOrganizer {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.Subject != buyerID.String() {
		t.Fatalf("expected subject %s, got %s", buyerID, claims.Subject)
	}
	if claims.ID == "" {
		t.Fatal("expected a generated jti")
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(now.Add(29*time.Minute)) {
		t.Fatal("expiry not applied from config")
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{BuyerID: uuid.New(), Role: enums.RoleBuyer})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature validation to fail")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{BuyerID: uuid.New(), Role: enums.RoleBuyer})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer validation to fail")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	issued := time.Now().Add(-2 * time.Hour)
	token, err := MintAccessToken(cfg, issued, AccessTokenPayload{BuyerID: uuid.New(), Role: enums.RoleBuyer})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testJWTConfig()

	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.RoleBuyer}); err == nil {
		t.Fatal("expected missing buyer id to fail")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{BuyerID: uuid.New(), Role: "ghost"}); err == nil {
		t.Fatal("expected invalid role to fail")
	}
	cfg.Secret = ""
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{BuyerID: uuid.New(), Role: enums.RoleBuyer}); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}
