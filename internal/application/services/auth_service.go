// Package services provides application-level orchestration services
package services

import (
	"crypto/subtle"
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
	"golang.org/x/crypto/bcrypt"
)

// AuthService validates operator credentials and mints console JWTs. The
// capability token is checked once at connection establishment; there is no
// per-message re-validation.
type AuthService struct {
	logger *logging.ChanneledLogger
}

// NewAuthService creates a new authentication service
func NewAuthService(logger *logging.ChanneledLogger) *AuthService {
	return &AuthService{logger: logger}
}

// AuthResult holds authentication result data
type AuthResult struct {
	Token   string `json:"token"`
	Role    string `json:"role"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// matchesAdminToken checks the shared operator secret. A bcrypt hash in
// ADMIN_TOKEN_HASH wins; otherwise the plaintext ADMIN_TOKEN is compared in
// constant time.
func (a *AuthService) matchesAdminToken(candidate string) bool {
	if candidate == "" {
		return false
	}

	if config.AdminTokenHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(config.AdminTokenHash), []byte(candidate)); err == nil {
			return true
		}
		return false
	}

	if config.AdminToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(config.AdminToken)) == 1
}

// ValidOperatorCredential accepts either the raw shared token (websocket
// handshakes, REST fallbacks) or a console JWT issued by AuthenticateOperator.
func (a *AuthService) ValidOperatorCredential(token string) bool {
	if a.matchesAdminToken(token) {
		return true
	}

	claims, err := security.ValidateJWT(token, config.JWTSecret)
	if err != nil {
		return false
	}
	return claims["type"] == "operator_auth"
}

// AuthenticateOperator validates the console password and generates a JWT
func (a *AuthService) AuthenticateOperator(password string) *AuthResult {
	if !a.matchesAdminToken(password) {
		a.logger.Auth().Warn("Operator login rejected")
		return &AuthResult{
			Success: false,
			Error:   "Invalid credentials",
		}
	}

	token, err := security.GenerateOperatorToken(config.JWTSecret, 24*time.Hour)
	if err != nil {
		a.logger.Auth().Error("Failed to sign operator token", "error", err.Error())
		return &AuthResult{
			Success: false,
			Error:   "Failed to generate token",
		}
	}

	a.logger.Auth().Info("Operator login succeeded")
	return &AuthResult{
		Success: true,
		Role:    "operator",
		Token:   token,
	}
}
