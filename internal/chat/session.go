package chat

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// Session binds one websocket connection to a room. The read pump drives
// event handling; the write pump drains the send buffer. A session that
// cannot keep up loses frames rather than blocking the hub.
type Session struct {
	hub  *Hub
	conn *websocket.Conn
	room RoomID
	role string

	// offerID mirrors the id this session last claimed via set_offer so
	// lifecycle events can stamp state frames without a hub round trip
	offerID string

	send   chan []byte
	quit   chan struct{}
	logger zerolog.Logger
}

// NewSession wraps an upgraded connection; callers must Join before Start
func NewSession(hub *Hub, conn *websocket.Conn, room RoomID, role string) *Session {
	return &Session{
		hub:  hub,
		conn: conn,
		room: room,
		role: role,
		send: make(chan []byte, sendBuffer),
		quit: make(chan struct{}),
		logger: log.With().
			Str("component", "chat_session").
			Str("buyer_id", room.BuyerID).
			Str("trader_id", room.TraderID).
			Str("role", role).
			Logger(),
	}
}

// Send queues a payload for the write pump. It reports false and drops the
// payload when the buffer is full or the session is closing.
func (s *Session) Send(payload []byte) bool {
	select {
	case <-s.quit:
		return false
	default:
	}

	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Start launches the read and write pumps
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}

func (s *Session) readPump() {
	defer func() {
		s.hub.Leave(s.room, s)
		close(s.quit)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("connection closed unexpectedly")
			}
			return
		}

		event, err := ParseEvent(data)
		if err != nil {
			// not JSON, drop it
			continue
		}

		s.handleEvent(event)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.quit:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) handleEvent(event Event) {
	switch event.Type {
	case EventChat, EventSystem:
		text := strings.TrimSpace(event.Text)
		if text == "" {
			return
		}
		s.hub.Broadcast(s.room, string(event.Type), s.role, text)

	case EventOfferItems:
		if len(event.Items) == 0 {
			s.sendError("offer_items requires an items array")
			return
		}
		s.hub.BroadcastItems(s.room, s.role, event.Items)

	case EventOfferLog, EventItemAsking:
		// relayed verbatim, the payload is opaque to the server
		s.hub.Broadcast(s.room, string(event.Type), s.role, string(event.Raw))

	case EventSetOffer:
		offerID := strings.TrimSpace(event.OfferID)
		if offerID == "" {
			s.sendError("set_offer requires an offer_id")
			return
		}
		s.offerID = offerID
		s.hub.Broadcast(s.room, frameTypeOfferSystem, s.role, offerID)
		s.hub.OfferState(s.room, OfferStateChange{
			Type:    string(EventSetOffer),
			OfferID: offerID,
			Dirty:   true,
		})

	case EventSendOffer:
		s.hub.OfferState(s.room, OfferStateChange{
			Type:    string(EventSendOffer),
			OfferID: s.offerID,
			Send:    true,
		})

	case EventAcceptOffer:
		s.hub.OfferState(s.room, OfferStateChange{
			Type:     string(EventAcceptOffer),
			OfferID:  s.offerID,
			Send:     true,
			Accepted: true,
		})

	case EventPaidOffer:
		s.hub.OfferState(s.room, OfferStateChange{
			Type:     string(EventPaidOffer),
			OfferID:  s.offerID,
			Send:     true,
			Accepted: true,
			Paid:     true,
		})
		s.hub.Broadcast(s.room, frameTypeSystem, RoleSystem, "Offer successfully paid")
		s.hub.Broadcast(s.room, frameTypeRevealSend, RoleSystem, "Trader is sending offer")

	case EventClearOffer:
		s.offerID = ""
		s.hub.OfferState(s.room, OfferStateChange{
			Type: string(EventClearOffer),
		})

	case EventStepConnecting:
		s.hub.OfferStep(s.room, s.role, "connect", "Offer stage")

	case EventStepAccepting:
		s.hub.OfferStep(s.room, s.role, "accept", "Accepted")

	case EventStepPaying:
		s.hub.OfferStep(s.room, s.role, "pay", "Buyer is paying for offer")

	default:
		// unknown event kinds are dropped without a reply
	}
}

// sendError delivers a private error frame to this session only
func (s *Session) sendError(text string) {
	payload := marshalFrame(errorFrame{Type: frameTypeError, Text: text})
	if payload != nil {
		_ = s.Send(payload)
	}
}
