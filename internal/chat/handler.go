package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tastyrock/marketplace-api/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The frontend is served from a separate origin, auth happens at the
	// gateway before the trade url is handed out
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GinHandlers exposes the websocket entrypoint
type GinHandlers struct {
	hub *Hub
}

// NewGinHandlers creates handlers bound to a running hub
func NewGinHandlers(hub *Hub) *GinHandlers {
	return &GinHandlers{hub: hub}
}

// ServeWSHandler upgrades a negotiation connection. The room is addressed by
// the buyer and trader query parameters; role defaults to buyer.
func (h *GinHandlers) ServeWSHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		buyerID := c.Query("buyer")
		traderID := c.Query("trader")
		if buyerID == "" || traderID == "" {
			response.BadRequest(c, "buyer and trader are required")
			return
		}

		role := RoleBuyer
		if c.Query("role") == RoleTrader {
			role = RoleTrader
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Str("component", "chat_handler").Msg("websocket upgrade failed")
			return
		}

		room := RoomID{BuyerID: buyerID, TraderID: traderID}
		session := NewSession(h.hub, conn, room, role)

		// Join before the pumps start so the private catch-up frame is
		// queued ahead of any broadcast
		h.hub.Join(room, session, role)
		session.Start()
	}
}
