package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dispatch-service/internal/dispatch"
	"dispatch-service/internal/identity"
	"dispatch-service/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// command is a room-membership request from the client.
type command struct {
	Action         string `json:"action"`
	AlertCode      string `json:"alert_code,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Gateway upgrades HTTP connections and bridges them into the dispatch
// router. Every connection auto-joins its own user room; further rooms are
// joined by client command.
type Gateway struct {
	router   dispatch.Router
	verifier identity.TokenVerifier
	logger   *logging.Logger
	buffer   int
	upgrader websocket.Upgrader
}

func NewGateway(router dispatch.Router, verifier identity.TokenVerifier, logger *logging.Logger, sendBuffer int) *Gateway {
	return &Gateway{
		router:   router,
		verifier: verifier,
		logger:   logger,
		buffer:   sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request. The bearer token rides the "token" query
// parameter because browsers cannot set headers on websocket dials.
func (g *Gateway) Handle(c *gin.Context) {
	claims, err := g.verifier.Verify(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	socket, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Errorf("WebSocket upgrade failed for user %s: %v", claims.UserID, err)
		return
	}

	conn := &connection{
		id:     uuid.New().String(),
		claims: claims,
		socket: socket,
		send:   make(chan []byte, g.buffer),
		done:   make(chan struct{}),
	}
	g.router.Register(conn)
	g.router.Join(conn.id, dispatch.UserRoom(claims.UserID))
	g.logger.Infof("Connection %s opened for user %s (%s)", conn.id, claims.UserID, claims.Role)

	go conn.writePump()
	g.readPump(conn)
}

// connection implements dispatch.Subscriber over one websocket.
type connection struct {
	id     string
	claims *identity.Claims
	socket *websocket.Conn
	send   chan []byte
	done   chan struct{}
}

func (c *connection) ID() string { return c.id }

// Send hands the frame to the write pump without blocking. A full buffer
// means the client cannot keep up; the frame is dropped and reported.
func (c *connection) Send(data []byte) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection %s closed", c.id)
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", c.id)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) readPump(c *connection) {
	defer func() {
		g.router.Disconnect(c.id)
		close(c.done)
		c.socket.Close()
		g.logger.Infof("Connection %s closed for user %s", c.id, c.claims.UserID)
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Warnf("Connection %s read error: %v", c.id, err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			g.logger.Warnf("Connection %s sent invalid command: %v", c.id, err)
			continue
		}
		g.apply(c, cmd)
	}
}

// apply executes one membership command. Join and leave are idempotent so
// repeated commands are harmless.
func (g *Gateway) apply(c *connection, cmd command) {
	switch cmd.Action {
	case "join_emergency_room":
		if c.claims.Role != "responder" && !c.claims.Admin() {
			g.logger.Warnf("User %s denied responder room", c.claims.UserID)
			return
		}
		g.router.Join(c.id, dispatch.RoomResponders)
	case "leave_emergency_room":
		g.router.Leave(c.id, dispatch.RoomResponders)
	case "join_alert_room":
		if cmd.AlertCode == "" {
			return
		}
		g.router.Join(c.id, dispatch.AlertRoom(cmd.AlertCode))
	case "leave_alert_room":
		if cmd.AlertCode == "" {
			return
		}
		g.router.Leave(c.id, dispatch.AlertRoom(cmd.AlertCode))
	case "join_conversation":
		if cmd.ConversationID == "" {
			return
		}
		g.router.Join(c.id, dispatch.ConversationRoom(cmd.ConversationID))
	case "leave_conversation":
		if cmd.ConversationID == "" {
			return
		}
		g.router.Leave(c.id, dispatch.ConversationRoom(cmd.ConversationID))
	default:
		g.logger.Warnf("Connection %s sent unknown action %q", c.id, cmd.Action)
	}
}
