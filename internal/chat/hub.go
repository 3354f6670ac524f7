package chat

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Participant roles within a room
const (
	RoleBuyer  = "buyer"
	RoleTrader = "trader"
	RoleSystem = "system"
)

// RoomID identifies the negotiation channel for one buyer/trader pair. It is
// stable for the lifetime of a negotiation and usable as a map key.
type RoomID struct {
	BuyerID  string
	TraderID string
}

// Client is a live connection the hub can deliver frames to. Delivery is
// best effort: the return value reports whether the payload was queued and
// the hub deliberately ignores it, so one dead connection can never stall a
// broadcast to the rest of a room.
type Client interface {
	Send(payload []byte) bool
}

// OfferStateChange is an offer lifecycle transition fanned out to a room.
// Type names the client event that caused it (set_offer, send_offer, ...).
type OfferStateChange struct {
	Type     string
	OfferID  string
	Dirty    bool
	Send     bool
	Accepted bool
	Paid     bool
}

// roomState is owned exclusively by the hub goroutine
type roomState struct {
	clients map[Client]string // client -> role
	offerID string            // single source of truth for broadcast stamping
}

type joinMsg struct {
	room   RoomID
	client Client
	role   string
}

type leaveMsg struct {
	room   RoomID
	client Client
}

type broadcastMsg struct {
	room     RoomID
	msgType  string
	fromRole string
	text     string
}

type itemsMsg struct {
	room     RoomID
	fromRole string
	items    json.RawMessage
}

type stateMsg struct {
	room   RoomID
	change OfferStateChange
}

type stepMsg struct {
	room     RoomID
	fromRole string
	step     string
	text     string
}

type paidMsg struct {
	room    RoomID
	offerID string
}

// Hub is the single owner of all room state. Every operation is a message
// on one FIFO mailbox drained by one goroutine, so operations for the same
// room are processed exactly in the order they were enqueued and can never
// interleave.
type Hub struct {
	mailbox chan interface{}
	rooms   map[RoomID]*roomState
}

const mailboxSize = 256

// NewHub creates a hub; callers must start Run in its own goroutine
func NewHub() *Hub {
	return &Hub{
		mailbox: make(chan interface{}, mailboxSize),
		rooms:   make(map[RoomID]*roomState),
	}
}

// Run drains the mailbox until the context is cancelled
func (h *Hub) Run(ctx context.Context) {
	logger := log.With().Str("component", "chat_hub").Logger()
	logger.Info().Msg("starting chat hub")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Int("rooms", len(h.rooms)).Msg("shutting down chat hub")
			return
		case msg := <-h.mailbox:
			h.dispatch(msg)
		}
	}
}

func (h *Hub) dispatch(msg interface{}) {
	switch m := msg.(type) {
	case joinMsg:
		h.handleJoin(m.room, m.client, m.role)
	case leaveMsg:
		h.handleLeave(m.room, m.client)
	case broadcastMsg:
		h.handleBroadcast(m.room, m.msgType, m.fromRole, m.text)
	case itemsMsg:
		h.handleItems(m.room, m.fromRole, m.items)
	case stateMsg:
		h.handleState(m.room, m.change)
	case stepMsg:
		h.handleStep(m.room, m.fromRole, m.step, m.text)
	case paidMsg:
		h.handlePaymentSucceeded(m.room, m.offerID)
	}
}

// Join registers a connection in a room
func (h *Hub) Join(room RoomID, client Client, role string) {
	h.mailbox <- joinMsg{room: room, client: client, role: role}
}

// Leave removes a connection; the last leave deletes the room
func (h *Hub) Leave(room RoomID, client Client) {
	h.mailbox <- leaveMsg{room: room, client: client}
}

// Broadcast fans a text payload out to every member of a room, sender
// included, stamped with the room's current offer id
func (h *Hub) Broadcast(room RoomID, msgType, fromRole, text string) {
	h.mailbox <- broadcastMsg{room: room, msgType: msgType, fromRole: fromRole, text: text}
}

// BroadcastItems fans a validated item-set announcement out to a room
func (h *Hub) BroadcastItems(room RoomID, fromRole string, items json.RawMessage) {
	h.mailbox <- itemsMsg{room: room, fromRole: fromRole, items: items}
}

// OfferState applies an offer lifecycle transition to the room and fans the
// resulting state frame out. This is the only path that changes a room's
// current offer id.
func (h *Hub) OfferState(room RoomID, change OfferStateChange) {
	h.mailbox <- stateMsg{room: room, change: change}
}

// OfferStep fans a UI progress ping out to a room; no state changes
func (h *Hub) OfferStep(room RoomID, fromRole, step, text string) {
	h.mailbox <- stepMsg{room: room, fromRole: fromRole, step: step, text: text}
}

// PaymentSucceeded is invoked by the payment collaborator once an external
// payment is verified. It stamps the room with the paid offer and announces
// the payment in a fixed frame order.
func (h *Hub) PaymentSucceeded(room RoomID, offerID string) {
	h.mailbox <- paidMsg{room: room, offerID: offerID}
}

func (h *Hub) handleJoin(room RoomID, client Client, role string) {
	state, ok := h.rooms[room]
	if !ok {
		state = &roomState{clients: make(map[Client]string)}
		h.rooms[room] = state
	}

	state.clients[client] = role

	// Private catch-up so late joiners learn the active offer without
	// replaying history
	if state.offerID != "" {
		payload := marshalFrame(textFrame{
			Type:     frameTypeOfferSystem,
			FromRole: frameTypeOfferSystem,
			OfferID:  state.offerID,
			Text:     state.offerID,
		})
		if payload != nil {
			_ = client.Send(payload)
		}
	}

	h.broadcastPresence(room)
}

func (h *Hub) handleLeave(room RoomID, client Client) {
	state, ok := h.rooms[room]
	if !ok {
		return
	}

	delete(state.clients, client)

	if len(state.clients) == 0 {
		delete(h.rooms, room)
		return
	}

	h.broadcastPresence(room)
}

func (h *Hub) handleBroadcast(room RoomID, msgType, fromRole, text string) {
	state, ok := h.rooms[room]
	if !ok {
		return
	}

	h.fanout(state, marshalFrame(textFrame{
		Type:     msgType,
		FromRole: fromRole,
		OfferID:  nullableID(state.offerID),
		Text:     text,
	}))
}

func (h *Hub) handleItems(room RoomID, fromRole string, items json.RawMessage) {
	state, ok := h.rooms[room]
	if !ok {
		return
	}

	h.fanout(state, marshalFrame(itemsFrame{
		Type:     frameTypeOfferItems,
		FromRole: fromRole,
		OfferID:  nullableID(state.offerID),
		Items:    items,
	}))
}

func (h *Hub) handleState(room RoomID, change OfferStateChange) {
	state, ok := h.rooms[room]
	if !ok {
		return
	}

	state.offerID = change.OfferID

	h.fanout(state, marshalFrame(stateFrame{
		Type:     change.Type,
		OfferID:  nullableID(change.OfferID),
		Dirty:    change.Dirty,
		Send:     change.Send,
		Accepted: change.Accepted,
		Paid:     change.Paid,
	}))
}

func (h *Hub) handleStep(room RoomID, fromRole, step, text string) {
	state, ok := h.rooms[room]
	if !ok {
		return
	}

	h.fanout(state, marshalFrame(stepFrame{
		Type:     frameTypeOfferStep,
		FromRole: fromRole,
		OfferID:  nullableID(state.offerID),
		Step:     step,
		Text:     text,
	}))
}

func (h *Hub) handlePaymentSucceeded(room RoomID, offerID string) {
	state, ok := h.rooms[room]
	if !ok {
		// room not connected right now, nothing to broadcast
		return
	}

	state.offerID = offerID

	h.fanout(state, marshalFrame(stateFrame{
		Type:     frameTypePaidOffer,
		OfferID:  offerID,
		Send:     true,
		Accepted: true,
		Paid:     true,
	}))

	h.fanout(state, marshalFrame(textFrame{
		Type:     frameTypeSystem,
		FromRole: RoleSystem,
		OfferID:  offerID,
		Text:     "Offer successfully paid",
	}))

	h.fanout(state, marshalFrame(textFrame{
		Type:     frameTypeRevealSend,
		FromRole: RoleSystem,
		OfferID:  offerID,
		Text:     "Trader is sending offer",
	}))
}

func (h *Hub) broadcastPresence(room RoomID) {
	state, ok := h.rooms[room]
	if !ok {
		return
	}

	var buyerPresent, traderPresent bool
	for _, role := range state.clients {
		if role == RoleBuyer {
			buyerPresent = true
		}
		if role == RoleTrader {
			traderPresent = true
		}
	}

	h.fanout(state, marshalFrame(presenceFrame{
		Type:          frameTypePresence,
		Count:         len(state.clients),
		BuyerPresent:  buyerPresent,
		TraderPresent: traderPresent,
		OfferID:       nullableID(state.offerID),
	}))
}

// fanout delivers a payload to every client in the room. Send results are
// discarded: a full or dead connection drops its copy and nothing else.
func (h *Hub) fanout(state *roomState, payload []byte) {
	if payload == nil {
		return
	}
	for client := range state.clients {
		_ = client.Send(payload)
	}
}
