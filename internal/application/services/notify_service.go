package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
	"github.com/resendlabs/resend-go"
)

// NotifyService emails an alert when a visitor writes while no operator
// console is connected. Alerts are rate-limited per visitor so a burst of
// messages produces one email.
type NotifyService struct {
	client   *resend.Client
	from     string
	to       string
	cooldown time.Duration
	logger   *logging.ChanneledLogger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewNotifyService returns nil when alert delivery is not configured; callers
// treat a nil service as alerts-disabled.
func NewNotifyService(logger *logging.ChanneledLogger) *NotifyService {
	if config.ResendAPIKey == "" || config.NotifyEmailTo == "" {
		logger.Email().Info("Offline alerts disabled, no Resend configuration")
		return nil
	}
	return &NotifyService{
		client:   resend.NewClient(config.ResendAPIKey),
		from:     config.NotifyEmailFrom,
		to:       config.NotifyEmailTo,
		cooldown: config.NotifyCooldown,
		logger:   logger,
		lastSent: make(map[string]time.Time),
	}
}

// VisitorMessage records an unattended visitor message and sends an alert
// unless one went out for this visitor inside the cooldown window. The send
// itself runs off the caller's goroutine so routing never waits on SMTP.
func (n *NotifyService) VisitorMessage(visitorID, content string) {
	if !n.shouldSend(visitorID) {
		return
	}
	go n.sendAlert(visitorID, content)
}

// shouldSend applies the per-visitor cooldown and claims the send slot.
func (n *NotifyService) shouldSend(visitorID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	last, seen := n.lastSent[visitorID]
	if seen && time.Since(last) < n.cooldown {
		return false
	}
	n.lastSent[visitorID] = time.Now()
	return true
}

func (n *NotifyService) sendAlert(visitorID, content string) {
	if len(content) > 200 {
		content = content[:200] + "…"
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		Subject: fmt.Sprintf("New chat message while offline (%s)", visitorID),
		Html: fmt.Sprintf(
			"<p>A visitor wrote while no operator was connected.</p><p><strong>Visitor:</strong> %s</p><blockquote>%s</blockquote>",
			visitorID, content,
		),
	}

	sent, err := n.client.Emails.Send(params)
	if err != nil {
		n.logger.Email().Error("Offline alert failed", "visitorId", visitorID, "error", err.Error())
		return
	}
	n.logger.Email().Info("Offline alert sent", "visitorId", visitorID, "emailId", sent.Id)
}
