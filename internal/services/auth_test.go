package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chaintrack/chaintrack-backend/internal/repos"
	"github.com/chaintrack/chaintrack-backend/internal/repos/testutil"
	"github.com/chaintrack/chaintrack-backend/internal/types"
)

func newAuthFixture(t *testing.T) AuthService {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	testutil.Reset(t, db, "api_key", `"user"`)

	userRepo := repos.NewUserRepo(db, log)
	apiKeyRepo := repos.NewAPIKeyRepo(db, log)
	return NewAuthService(db, log, userRepo, apiKeyRepo, "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newAuthFixture(t)
	ctx := context.Background()

	created, err := auth.RegisterUser(ctx, &types.User{
		Username: "operator",
		Email:    "Operator@Example.COM",
		Password: "correct horse battery staple",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.Email != "operator@example.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.Password == "correct horse battery staple" {
		t.Fatalf("password stored in plaintext")
	}
	if !created.IsActive {
		t.Fatalf("new users must be active")
	}

	// Same email, different casing.
	if _, err := auth.RegisterUser(ctx, &types.User{
		Username: "operator2",
		Email:    "operator@example.com",
		Password: "another password",
	}); err == nil {
		t.Fatalf("duplicate email must be rejected")
	}

	token, user, err := auth.LoginUser(ctx, "operator@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatalf("login returned empty token")
	}
	if user.ID != created.ID {
		t.Fatalf("login returned wrong user")
	}

	if _, _, err := auth.LoginUser(ctx, "operator@example.com", "wrong password"); err == nil {
		t.Fatalf("wrong password must be rejected")
	}
	if _, _, err := auth.LoginUser(ctx, "nobody@example.com", "whatever"); err == nil {
		t.Fatalf("unknown email must be rejected")
	}
}

func TestValidateToken(t *testing.T) {
	auth := newAuthFixture(t)
	ctx := context.Background()

	created, err := auth.RegisterUser(ctx, &types.User{
		Username: "operator",
		Email:    "operator@example.com",
		Password: "correct horse battery staple",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, _, err := auth.LoginUser(ctx, "operator@example.com", "correct horse battery staple")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	user, err := auth.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("token resolved to wrong user")
	}

	if _, err := auth.ValidateToken(ctx, token+"tampered"); err == nil {
		t.Fatalf("tampered token must be rejected")
	}
	if _, err := auth.ValidateToken(ctx, "not a token"); err == nil {
		t.Fatalf("garbage token must be rejected")
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	auth := newAuthFixture(t)
	ctx := context.Background()

	owner, err := auth.RegisterUser(ctx, &types.User{
		Username: "operator",
		Email:    "operator@example.com",
		Password: "correct horse battery staple",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	issued, err := auth.IssueAPIKey(ctx, owner.ID, "ci", "pipeline key", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(issued.Secret, "ct_") {
		t.Fatalf("plaintext key prefix=%q", issued.Secret[:4])
	}
	if issued.Key.KeyPrefix != issued.Secret[:10] {
		t.Fatalf("display prefix=%q, want first 10 chars of secret", issued.Key.KeyPrefix)
	}
	if issued.Key.KeyHash == issued.Secret {
		t.Fatalf("plaintext persisted instead of digest")
	}

	user, err := auth.ValidateAPIKey(ctx, issued.Secret)
	if err != nil {
		t.Fatalf("validate key: %v", err)
	}
	if user.ID != owner.ID {
		t.Fatalf("key resolved to wrong user")
	}

	if _, err := auth.ValidateAPIKey(ctx, "ct_0000000000"); err == nil {
		t.Fatalf("unknown key must be rejected")
	}

	// Keys belong to their issuer.
	other, err := auth.RegisterUser(ctx, &types.User{
		Username: "intruder",
		Email:    "intruder@example.com",
		Password: "some password",
	})
	if err != nil {
		t.Fatalf("register second user: %v", err)
	}
	if err := auth.RevokeAPIKey(ctx, other.ID, issued.Key.ID); err == nil {
		t.Fatalf("revoking someone else's key must fail")
	}

	if err := auth.RevokeAPIKey(ctx, owner.ID, issued.Key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := auth.ValidateAPIKey(ctx, issued.Secret); err == nil {
		t.Fatalf("revoked key must be rejected")
	}
}

func TestExpiredAPIKey(t *testing.T) {
	auth := newAuthFixture(t)
	ctx := context.Background()

	owner, err := auth.RegisterUser(ctx, &types.User{
		Username: "operator",
		Email:    "operator@example.com",
		Password: "correct horse battery staple",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	expired := time.Now().Add(-time.Hour)
	issued, err := auth.IssueAPIKey(ctx, owner.ID, "stale", "", &expired)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := auth.ValidateAPIKey(ctx, issued.Secret); err == nil {
		t.Fatalf("expired key must be rejected")
	}
}
