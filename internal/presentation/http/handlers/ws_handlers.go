// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/application/services"
	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // widget embeds on arbitrary origins
	},
}

// WSHandlers owns the websocket endpoint: handshake, session registration,
// and the read/write pumps for each connection.
type WSHandlers struct {
	registry    *messaging.Registry
	chatRouter  *services.ChatRouter
	authService *services.AuthService
	logger      *logging.ChanneledLogger
}

// NewWSHandlers creates websocket handlers with injected dependencies
func NewWSHandlers(registry *messaging.Registry, chatRouter *services.ChatRouter, authService *services.AuthService, logger *logging.ChanneledLogger) *WSHandlers {
	return &WSHandlers{
		registry:    registry,
		chatRouter:  chatRouter,
		authService: authService,
		logger:      logger,
	}
}

// HandleConnection handles GET /ws. Identity is established once from the
// handshake query (role, token, clientId, username); there is no
// per-message re-authentication.
func (h *WSHandlers) HandleConnection(c *gin.Context) {
	role := c.DefaultQuery("role", "visitor")
	token := c.Query("token")
	clientID := c.Query("clientId")
	username := c.Query("username")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Websocket().Warn("Upgrade failed", "error", err.Error())
		return
	}

	if role == "admin" || role == "operator" {
		if !h.authService.ValidOperatorCredential(token) {
			h.logger.Auth().Warn("Operator websocket rejected", "remote", c.ClientIP())
			h.writeEvent(conn, chat.ErrorEvent{Type: chat.EventError, Message: chat.ErrUnauthorized.Error()})
			conn.Close()
			return
		}
		h.runSession(conn, messaging.NewSession(security.GenerateULID(), chat.RoleOperator, "", config.SessionSendBuffer))
		return
	}

	if clientID == "" {
		clientID = security.GenerateVisitorID()
	}
	if err := h.chatRouter.EnsureVisitor(clientID, username); err != nil {
		h.logger.Websocket().Error("Visitor bootstrap failed", "visitorId", clientID, "error", err.Error())
		h.writeEvent(conn, chat.ErrorEvent{Type: chat.EventError, Message: "service unavailable"})
		conn.Close()
		return
	}
	h.runSession(conn, messaging.NewSession(security.GenerateULID(), chat.RoleVisitor, clientID, config.SessionSendBuffer))
}

// runSession registers the session, acknowledges it, and runs the pumps. The
// read pump owns teardown; Session.Close is idempotent so racing paths are
// safe.
func (h *WSHandlers) runSession(conn *websocket.Conn, sess *messaging.Session) {
	h.registry.Register(sess)

	// Ready goes out before the write pump starts so there is never a second
	// writer on the connection.
	h.writeEvent(conn, chat.ReadyEvent{Type: chat.EventReady, Role: sess.Role, ClientID: sess.VisitorID})

	go h.writePump(conn, sess)
	h.readPump(conn, sess)
}

func (h *WSHandlers) readPump(conn *websocket.Conn, sess *messaging.Session) {
	defer func() {
		sess.Close()
		conn.Close()
	}()

	conn.SetReadLimit(config.MaxEventBytes)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Websocket().Debug("Read pump ended", "sessionId", sess.ID, "error", err.Error())
			}
			return
		}
		h.chatRouter.HandleEvent(sess, raw)
	}
}

func (h *WSHandlers) writePump(conn *websocket.Conn, sess *messaging.Session) {
	defer conn.Close()

	for {
		select {
		case payload, ok := <-sess.Outbox():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				sess.Close()
				return
			}
		case <-sess.Done():
			conn.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (h *WSHandlers) writeEvent(conn *websocket.Conn, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(config.WSWriteTimeout))
	conn.WriteMessage(websocket.TextMessage, payload)
}
