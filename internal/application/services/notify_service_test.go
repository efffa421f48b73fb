package services

import (
	"testing"
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
)

func TestNotifyServiceDisabledWithoutConfig(t *testing.T) {
	config.Initialize()
	config.ResendAPIKey = ""
	config.NotifyEmailTo = ""

	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}

	if svc := NewNotifyService(logger); svc != nil {
		t.Fatal("service created without a Resend configuration")
	}
}

func TestNotifyCooldownIsPerVisitor(t *testing.T) {
	n := &NotifyService{
		cooldown: time.Hour,
		lastSent: make(map[string]time.Time),
	}

	if !n.shouldSend("v1") {
		t.Fatal("first alert for v1 suppressed")
	}
	if n.shouldSend("v1") {
		t.Fatal("second alert for v1 not suppressed inside the cooldown")
	}
	if !n.shouldSend("v2") {
		t.Fatal("alert for a different visitor suppressed")
	}

	// an expired window opens the slot again
	n.lastSent["v1"] = time.Now().Add(-2 * time.Hour)
	if !n.shouldSend("v1") {
		t.Fatal("alert suppressed after the cooldown expired")
	}
}
