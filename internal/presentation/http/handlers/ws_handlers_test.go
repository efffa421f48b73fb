package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/application/services"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/persistence/database"
	chatrepo "github.com/AtRiskMedia/chatline-go/internal/infrastructure/persistence/chat"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.Initialize()
	config.AdminToken = "op-secret"
	config.AdminTokenHash = ""
	config.JWTSecret = "test-secret"

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

	registry := messaging.NewRegistry(logger)
	chatRouter := services.NewChatRouter(
		registry,
		chatrepo.NewSQLVisitorRepository(db, logger),
		chatrepo.NewSQLMessageRepository(db, logger),
		nil,
		logger,
	)
	wsHandlers := NewWSHandlers(registry, chatRouter, services.NewAuthService(logger), logger)

	r := gin.New()
	r.GET("/ws", wsHandlers.HandleConnection)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", query, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return event
}

func TestVisitorHandshakeAssignsIdentity(t *testing.T) {
	srv := newTestServer(t)

	conn := dial(t, srv, "role=visitor&username=Alice")
	ready := readEvent(t, conn)
	if ready["type"] != "ready" || ready["role"] != "visitor" {
		t.Fatalf("ready = %v", ready)
	}
	assigned, _ := ready["clientId"].(string)
	if assigned == "" {
		t.Fatal("server did not assign a visitor id")
	}

	// reconnecting with the id keeps the identity
	conn2 := dial(t, srv, "role=visitor&clientId="+assigned)
	ready2 := readEvent(t, conn2)
	if ready2["clientId"] != assigned {
		t.Fatalf("reconnect got id %v, want %s", ready2["clientId"], assigned)
	}
}

func TestOperatorHandshakeRejectsBadToken(t *testing.T) {
	srv := newTestServer(t)

	conn := dial(t, srv, "role=admin&token=wrong")
	event := readEvent(t, conn)
	if event["type"] != "error" {
		t.Fatalf("got %v, want error event", event)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection stayed open after rejection")
	}
}

func TestMessageFlowVisitorToOperator(t *testing.T) {
	srv := newTestServer(t)

	operator := dial(t, srv, "role=admin&token=op-secret")
	if ready := readEvent(t, operator); ready["role"] != "operator" {
		t.Fatalf("operator ready = %v", ready)
	}

	visitor := dial(t, srv, "role=visitor&clientId=v1&username=Alice")
	readEvent(t, visitor) // ready

	send := `{"type":"message.send","payload":{"kind":"text","content":"anyone there?"}}`
	if err := visitor.WriteMessage(websocket.TextMessage, []byte(send)); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := readEvent(t, operator)
	if got["type"] != "message" || got["from"] != "visitor" || got["visitorId"] != "v1" || got["content"] != "anyone there?" {
		t.Fatalf("operator got %v", got)
	}

	echo := readEvent(t, visitor)
	if echo["type"] != "message" || echo["content"] != "anyone there?" {
		t.Fatalf("visitor echo = %v", echo)
	}

	// operator replies to the visitor
	reply := `{"type":"message.send","clientId":"v1","payload":{"kind":"text","content":"yes, hello"}}`
	if err := operator.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got = readEvent(t, visitor)
	if got["from"] != "admin" || got["content"] != "yes, hello" {
		t.Fatalf("visitor got %v", got)
	}
}

func TestHistoryAcrossReconnect(t *testing.T) {
	srv := newTestServer(t)

	visitor := dial(t, srv, "role=visitor&clientId=v1")
	readEvent(t, visitor) // ready
	send := `{"type":"message.send","payload":{"kind":"text","content":"remember me"}}`
	if err := visitor.WriteMessage(websocket.TextMessage, []byte(send)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readEvent(t, visitor) // echo
	visitor.Close()

	again := dial(t, srv, "role=visitor&clientId=v1")
	readEvent(t, again) // ready
	if err := again.WriteMessage(websocket.TextMessage, []byte(`{"type":"history.request"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	history := readEvent(t, again)
	if history["type"] != "history.response" {
		t.Fatalf("got %v, want history.response", history)
	}
	messages, ok := history["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("history = %v, want 1 message", history["messages"])
	}
	if m := messages[0].(map[string]any); m["content"] != "remember me" {
		t.Fatalf("persisted message = %v", m)
	}
}
