package cmd

import (
	"testing"
	"time"

	"github.com/eventeye/server/internal/auth"
)

func TestMintToken(t *testing.T) {
	manager, err := auth.NewJWTManager("token-command-secret", time.Hour, "eventeye")
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	token, err := mintToken(manager, "web-client", "anon", "", 24*time.Hour)
	if err != nil {
		t.Fatalf("mintToken: %v", err)
	}
	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Role != string(auth.RoleAnon) || claims.Subject != "web-client" {
		t.Errorf("claims = %+v, want anon web-client", claims)
	}

	if _, err := mintToken(manager, "ops", "admin", "", time.Hour); err == nil {
		t.Error("expected unknown role to be rejected")
	}
	if _, err := mintToken(manager, "ops", "organizer", "ops@example.com", 0); err == nil {
		t.Error("expected zero ttl to be rejected")
	}
}
