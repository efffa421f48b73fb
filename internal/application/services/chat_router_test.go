package services

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/persistence/database"
	chatrepo "github.com/AtRiskMedia/chatline-go/internal/infrastructure/persistence/chat"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
)

type routerFixture struct {
	router   *ChatRouter
	registry *messaging.Registry
	visitors chat.VisitorRepository
	messages chat.MessageRepository
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	config.Initialize()

	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	logger, err := logging.NewChanneledLogger(cfg)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}

	db, err := database.NewConnection("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := db.EnsureSchema(logger); err != nil {
		t.Fatalf("failed to bootstrap schema: %v", err)
	}

	visitors := chatrepo.NewSQLVisitorRepository(db, logger)
	messages := chatrepo.NewSQLMessageRepository(db, logger)
	registry := messaging.NewRegistry(logger)

	return &routerFixture{
		router:   NewChatRouter(registry, visitors, messages, nil, logger),
		registry: registry,
		visitors: visitors,
		messages: messages,
	}
}

func decodeEvent(t *testing.T, s *messaging.Session) map[string]any {
	t.Helper()
	select {
	case payload := <-s.Outbox():
		var event map[string]any
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("failed to decode event %q: %v", payload, err)
		}
		return event
	default:
		t.Fatal("expected an event, outbox is empty")
		return nil
	}
}

func assertEmpty(t *testing.T, s *messaging.Session) {
	t.Helper()
	select {
	case payload := <-s.Outbox():
		t.Fatalf("unexpected event delivered: %s", payload)
	default:
	}
}

func TestVisitorMessageReachesOperatorsAndEchoes(t *testing.T) {
	f := newRouterFixture(t)

	visitor := messaging.NewSession("v-sess", chat.RoleVisitor, "v1", 8)
	tab := messaging.NewSession("v-tab", chat.RoleVisitor, "v1", 8)
	operator := messaging.NewSession("op", chat.RoleOperator, "", 8)
	f.registry.Register(visitor)
	f.registry.Register(tab)
	f.registry.Register(operator)

	if err := f.router.EnsureVisitor("v1", "Alice"); err != nil {
		t.Fatalf("EnsureVisitor: %v", err)
	}

	raw := []byte(`{"type":"message.send","payload":{"kind":"text","content":"hello"}}`)
	f.router.HandleEvent(visitor, raw)

	for _, s := range []*messaging.Session{visitor, tab, operator} {
		event := decodeEvent(t, s)
		if event["type"] != "message" {
			t.Fatalf("session %s got type %v, want message", s.ID, event["type"])
		}
		if event["from"] != "visitor" || event["visitorId"] != "v1" || event["content"] != "hello" {
			t.Fatalf("session %s got unexpected event: %v", s.ID, event)
		}
		if event["id"] == float64(0) {
			t.Fatalf("session %s saw a message without a store-assigned id", s.ID)
		}
	}
}

func TestOperatorReplyTargetsOneVisitor(t *testing.T) {
	f := newRouterFixture(t)

	target := messaging.NewSession("target", chat.RoleVisitor, "v1", 8)
	bystander := messaging.NewSession("bystander", chat.RoleVisitor, "v2", 8)
	operator := messaging.NewSession("op", chat.RoleOperator, "", 8)
	console2 := messaging.NewSession("op2", chat.RoleOperator, "", 8)
	f.registry.Register(target)
	f.registry.Register(bystander)
	f.registry.Register(operator)
	f.registry.Register(console2)

	raw := []byte(`{"type":"message.send","clientId":"v1","payload":{"kind":"text","content":"hi there"}}`)
	f.router.HandleEvent(operator, raw)

	for _, s := range []*messaging.Session{target, operator, console2} {
		event := decodeEvent(t, s)
		if event["from"] != "admin" || event["visitorId"] != "v1" {
			t.Fatalf("session %s got unexpected event: %v", s.ID, event)
		}
	}
	assertEmpty(t, bystander)
}

func TestOperatorSendWithoutTargetIsDropped(t *testing.T) {
	f := newRouterFixture(t)

	operator := messaging.NewSession("op", chat.RoleOperator, "", 8)
	f.registry.Register(operator)

	raw := []byte(`{"type":"message.send","payload":{"kind":"text","content":"to nobody"}}`)
	f.router.HandleEvent(operator, raw)

	assertEmpty(t, operator)
	history, err := f.messages.ListByVisitor("")
	if err != nil {
		t.Fatalf("ListByVisitor: %v", err)
	}
	if len(history) != 0 {
		t.Fatal("dropped event was persisted")
	}
}

func TestMalformedEventsAreDroppedSilently(t *testing.T) {
	f := newRouterFixture(t)

	visitor := messaging.NewSession("v", chat.RoleVisitor, "v1", 8)
	f.registry.Register(visitor)

	frames := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type":"no.such.event"}`),
		[]byte(`{"type":"message.send"}`),
		[]byte(`{"type":"message.send","payload":{"kind":"text","content":""}}`),
		[]byte(`{"type":"message.send","payload":{"kind":"carrier-pigeon","content":"hi"}}`),
		[]byte(`{"type":"roster.request"}`), // operator-only
		[]byte(`{"type":"visitor.purge","clientId":"v1"}`),
	}
	for _, raw := range frames {
		f.router.HandleEvent(visitor, raw)
		assertEmpty(t, visitor)
	}

	// the connection keeps working after every drop
	f.router.HandleEvent(visitor, []byte(`{"type":"message.send","payload":{"kind":"text","content":"still here"}}`))
	event := decodeEvent(t, visitor)
	if event["content"] != "still here" {
		t.Fatalf("valid event after drops got %v", event)
	}
}

func TestHistoryRequestReturnsArrivalOrder(t *testing.T) {
	f := newRouterFixture(t)

	visitor := messaging.NewSession("v", chat.RoleVisitor, "v1", 8)
	f.registry.Register(visitor)

	f.router.HandleEvent(visitor, []byte(`{"type":"message.send","payload":{"kind":"text","content":"first"}}`))
	f.router.HandleEvent(visitor, []byte(`{"type":"message.send","payload":{"kind":"text","content":"second"}}`))
	// drain the two live echoes
	decodeEvent(t, visitor)
	decodeEvent(t, visitor)

	f.router.HandleEvent(visitor, []byte(`{"type":"history.request"}`))
	event := decodeEvent(t, visitor)
	if event["type"] != "history.response" {
		t.Fatalf("got type %v, want history.response", event["type"])
	}
	messages, ok := event["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("history = %v, want 2 messages", event["messages"])
	}
	first := messages[0].(map[string]any)
	second := messages[1].(map[string]any)
	if first["content"] != "first" || second["content"] != "second" {
		t.Fatalf("history out of order: %v then %v", first["content"], second["content"])
	}
}

func TestOperatorCanRequestAnyVisitorHistory(t *testing.T) {
	f := newRouterFixture(t)

	if _, err := f.router.Ingest("v1", chat.SenderVisitor, chat.KindText, "from v1"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	operator := messaging.NewSession("op", chat.RoleOperator, "", 8)
	f.registry.Register(operator)

	f.router.HandleEvent(operator, []byte(`{"type":"history.request","clientId":"v1"}`))
	event := decodeEvent(t, operator)
	if event["clientId"] != "v1" {
		t.Fatalf("history for %v, want v1", event["clientId"])
	}
}

func TestRosterRequest(t *testing.T) {
	f := newRouterFixture(t)

	if err := f.router.EnsureVisitor("v1", "Alice"); err != nil {
		t.Fatalf("EnsureVisitor: %v", err)
	}
	if _, err := f.router.Ingest("v1", chat.SenderVisitor, chat.KindText, "hello"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	operator := messaging.NewSession("op", chat.RoleOperator, "", 8)
	f.registry.Register(operator)

	f.router.HandleEvent(operator, []byte(`{"type":"roster.request"}`))
	event := decodeEvent(t, operator)
	if event["type"] != "roster.response" {
		t.Fatalf("got type %v, want roster.response", event["type"])
	}
	visitors, ok := event["visitors"].([]any)
	if !ok || len(visitors) != 1 {
		t.Fatalf("roster = %v, want 1 entry", event["visitors"])
	}
	entry := visitors[0].(map[string]any)
	if entry["id"] != "v1" || entry["lastContent"] != "hello" {
		t.Fatalf("roster entry = %v", entry)
	}
}

func TestPurgeRemovesVisitorAndNotifiesOperators(t *testing.T) {
	f := newRouterFixture(t)

	if err := f.router.EnsureVisitor("v1", "Alice"); err != nil {
		t.Fatalf("EnsureVisitor: %v", err)
	}
	if _, err := f.router.Ingest("v1", chat.SenderVisitor, chat.KindText, "soon gone"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	operator := messaging.NewSession("op", chat.RoleOperator, "", 8)
	f.registry.Register(operator)

	f.router.HandleEvent(operator, []byte(`{"type":"visitor.purge","clientId":"v1"}`))

	event := decodeEvent(t, operator)
	if event["type"] != "purge.confirmed" || event["clientId"] != "v1" {
		t.Fatalf("got %v, want purge.confirmed for v1", event)
	}

	gone, err := f.visitors.FindByID("v1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if gone != nil {
		t.Fatal("visitor survived the purge")
	}

	// a reconnect bootstraps a clean identity
	if err := f.router.EnsureVisitor("v1", "Alice"); err != nil {
		t.Fatalf("EnsureVisitor after purge: %v", err)
	}
	history, err := f.messages.ListByVisitor("v1")
	if err != nil {
		t.Fatalf("ListByVisitor: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history after purge = %d messages, want 0", len(history))
	}
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	f := newRouterFixture(t)

	if _, err := f.router.Ingest("v1", chat.SenderVisitor, chat.KindText, ""); !errors.Is(err, chat.ErrMalformedEvent) {
		t.Fatalf("empty content: err = %v, want ErrMalformedEvent", err)
	}
	if _, err := f.router.Ingest("v1", chat.SenderVisitor, chat.Kind("smoke-signal"), "hi"); !errors.Is(err, chat.ErrMalformedEvent) {
		t.Fatalf("bad kind: err = %v, want ErrMalformedEvent", err)
	}
}

// failingMessageRepo simulates a store outage.
type failingMessageRepo struct{}

func (f *failingMessageRepo) Store(m *chat.Message) (int64, error) {
	return 0, errors.New("disk on fire")
}

func (f *failingMessageRepo) ListByVisitor(visitorID string) ([]*chat.Message, error) {
	return nil, errors.New("disk on fire")
}

func TestPersistenceFailureSurfacesToOriginatorOnly(t *testing.T) {
	f := newRouterFixture(t)
	f.router.messages = &failingMessageRepo{}

	visitor := messaging.NewSession("v", chat.RoleVisitor, "v1", 8)
	operator := messaging.NewSession("op", chat.RoleOperator, "", 8)
	f.registry.Register(visitor)
	f.registry.Register(operator)

	f.router.HandleEvent(visitor, []byte(`{"type":"message.send","payload":{"kind":"text","content":"doomed"}}`))

	event := decodeEvent(t, visitor)
	if event["type"] != "error" {
		t.Fatalf("originator got %v, want error event", event)
	}
	assertEmpty(t, operator)
}
