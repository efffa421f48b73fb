package services

import (
	"testing"

	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
	"golang.org/x/crypto/bcrypt"
)

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	config.Initialize()
	config.AdminToken = "hunter2"
	config.AdminTokenHash = ""
	config.JWTSecret = "test-secret"

	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return NewAuthService(logger)
}

func TestAuthenticateOperator(t *testing.T) {
	auth := newAuthFixture(t)

	result := auth.AuthenticateOperator("wrong")
	if result.Success {
		t.Fatal("wrong password accepted")
	}

	result = auth.AuthenticateOperator("hunter2")
	if !result.Success || result.Token == "" {
		t.Fatalf("valid password rejected: %+v", result)
	}
	if result.Role != "operator" {
		t.Fatalf("role = %q, want operator", result.Role)
	}
}

func TestValidOperatorCredential(t *testing.T) {
	auth := newAuthFixture(t)

	if auth.ValidOperatorCredential("") {
		t.Fatal("empty credential accepted")
	}
	if auth.ValidOperatorCredential("nonsense") {
		t.Fatal("garbage credential accepted")
	}
	if !auth.ValidOperatorCredential("hunter2") {
		t.Fatal("raw shared token rejected")
	}

	// a minted console JWT is also a valid credential
	result := auth.AuthenticateOperator("hunter2")
	if !auth.ValidOperatorCredential(result.Token) {
		t.Fatal("freshly minted JWT rejected")
	}
}

func TestBcryptHashTakesPrecedence(t *testing.T) {
	auth := newAuthFixture(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cure"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	config.AdminTokenHash = string(hash)
	t.Cleanup(func() { config.AdminTokenHash = "" })

	if auth.ValidOperatorCredential("hunter2") {
		t.Fatal("plaintext token accepted while a hash is configured")
	}
	if !auth.ValidOperatorCredential("s3cure") {
		t.Fatal("hashed password rejected")
	}
}
