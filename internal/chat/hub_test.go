package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubClient records delivered frames; safe for use with a running hub
type stubClient struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *stubClient) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, payload)
	return true
}

func (c *stubClient) snapshot() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func (c *stubClient) decoded(t *testing.T) []map[string]interface{} {
	t.Helper()
	frames := c.snapshot()
	out := make([]map[string]interface{}, 0, len(frames))
	for _, frame := range frames {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(frame, &m))
		out = append(out, m)
	}
	return out
}

func (c *stubClient) last(t *testing.T) map[string]interface{} {
	t.Helper()
	frames := c.decoded(t)
	require.NotEmpty(t, frames)
	return frames[len(frames)-1]
}

var testRoom = RoomID{BuyerID: "buyer-1", TraderID: "trader-1"}

func TestHandleJoinPresence(t *testing.T) {
	hub := NewHub()
	buyer := &stubClient{}

	hub.handleJoin(testRoom, buyer, RoleBuyer)

	frame := buyer.last(t)
	require.Equal(t, "presence", frame["type"])
	require.Equal(t, float64(1), frame["count"])
	require.Equal(t, true, frame["buyer_present"])
	require.Equal(t, false, frame["trader_present"])
	require.Nil(t, frame["offer_id"])

	trader := &stubClient{}
	hub.handleJoin(testRoom, trader, RoleTrader)

	// both sides see the updated presence
	for _, client := range []*stubClient{buyer, trader} {
		frame := client.last(t)
		require.Equal(t, float64(2), frame["count"])
		require.Equal(t, true, frame["buyer_present"])
		require.Equal(t, true, frame["trader_present"])
	}
}

func TestHandleJoinThirdConnection(t *testing.T) {
	hub := NewHub()
	buyer := &stubClient{}
	trader := &stubClient{}
	secondTrader := &stubClient{}

	hub.handleJoin(testRoom, buyer, RoleBuyer)
	hub.handleJoin(testRoom, trader, RoleTrader)
	hub.handleJoin(testRoom, secondTrader, RoleTrader)

	frame := buyer.last(t)
	require.Equal(t, float64(3), frame["count"])
	require.Equal(t, true, frame["buyer_present"])
	require.Equal(t, true, frame["trader_present"])
}

func TestHandleJoinCatchUp(t *testing.T) {
	hub := NewHub()
	buyer := &stubClient{}

	hub.handleJoin(testRoom, buyer, RoleBuyer)
	hub.handleState(testRoom, OfferStateChange{Type: "set_offer", OfferID: "offer-42", Dirty: true})

	late := &stubClient{}
	hub.handleJoin(testRoom, late, RoleTrader)

	frames := late.decoded(t)
	require.Len(t, frames, 2)

	// catch-up arrives before presence and only to the joiner
	require.Equal(t, "offer_system", frames[0]["type"])
	require.Equal(t, "offer_system", frames[0]["from_role"])
	require.Equal(t, "offer-42", frames[0]["offer_id"])
	require.Equal(t, "offer-42", frames[0]["text"])
	require.Equal(t, "presence", frames[1]["type"])

	for _, frame := range buyer.decoded(t) {
		require.NotEqual(t, "offer_system", frame["type"])
	}
}

func TestHandleLeaveDeletesEmptyRoom(t *testing.T) {
	hub := NewHub()
	buyer := &stubClient{}
	trader := &stubClient{}

	hub.handleJoin(testRoom, buyer, RoleBuyer)
	hub.handleJoin(testRoom, trader, RoleTrader)
	hub.handleState(testRoom, OfferStateChange{Type: "set_offer", OfferID: "offer-7", Dirty: true})

	hub.handleLeave(testRoom, trader)
	frame := buyer.last(t)
	require.Equal(t, "presence", frame["type"])
	require.Equal(t, float64(1), frame["count"])
	require.Equal(t, false, frame["trader_present"])

	hub.handleLeave(testRoom, buyer)
	require.NotContains(t, hub.rooms, testRoom)

	// a fresh join sees no stale offer id
	rejoined := &stubClient{}
	hub.handleJoin(testRoom, rejoined, RoleBuyer)
	frames := rejoined.decoded(t)
	require.Len(t, frames, 1)
	require.Equal(t, "presence", frames[0]["type"])
	require.Nil(t, frames[0]["offer_id"])
}

func TestHandleBroadcastStampsOfferID(t *testing.T) {
	hub := NewHub()
	buyer := &stubClient{}
	trader := &stubClient{}

	hub.handleJoin(testRoom, buyer, RoleBuyer)
	hub.handleJoin(testRoom, trader, RoleTrader)

	hub.handleBroadcast(testRoom, "chat", RoleBuyer, "hello")
	frame := trader.last(t)
	require.Equal(t, "chat", frame["type"])
	require.Equal(t, "buyer", frame["from_role"])
	require.Equal(t, "hello", frame["text"])
	require.Nil(t, frame["offer_id"])

	// sender receives its own broadcast too
	require.Equal(t, frame, buyer.last(t))

	hub.handleState(testRoom, OfferStateChange{Type: "set_offer", OfferID: "offer-9", Dirty: true})
	hub.handleBroadcast(testRoom, "chat", RoleTrader, "deal")
	require.Equal(t, "offer-9", buyer.last(t)["offer_id"])
}

func TestHandleBroadcastUnknownRoom(t *testing.T) {
	hub := NewHub()

	// must not panic or create a room
	hub.handleBroadcast(testRoom, "chat", RoleBuyer, "hello")
	require.Empty(t, hub.rooms)
}

func TestHandleStateFrame(t *testing.T) {
	hub := NewHub()
	buyer := &stubClient{}
	hub.handleJoin(testRoom, buyer, RoleBuyer)

	hub.handleState(testRoom, OfferStateChange{
		Type:     "accept_offer",
		OfferID:  "offer-3",
		Send:     true,
		Accepted: true,
	})

	frame := buyer.last(t)
	require.Equal(t, "accept_offer", frame["type"])
	require.Equal(t, "offer-3", frame["offer_id"])
	require.Equal(t, false, frame["offer_dirty"])
	require.Equal(t, true, frame["offer_send"])
	require.Equal(t, true, frame["offer_accepted"])
	require.Equal(t, false, frame["offer_paid"])
	require.Equal(t, "offer-3", hub.rooms[testRoom].offerID)

	// clear_offer resets the room's offer id
	hub.handleState(testRoom, OfferStateChange{Type: "clear_offer"})
	frame = buyer.last(t)
	require.Equal(t, "clear_offer", frame["type"])
	require.Nil(t, frame["offer_id"])
	require.Equal(t, "", hub.rooms[testRoom].offerID)
}

func TestHandleStepFrame(t *testing.T) {
	hub := NewHub()
	buyer := &stubClient{}
	hub.handleJoin(testRoom, buyer, RoleBuyer)
	hub.handleState(testRoom, OfferStateChange{Type: "set_offer", OfferID: "offer-5", Dirty: true})

	hub.handleStep(testRoom, RoleBuyer, "pay", "Buyer is paying for offer")

	frame := buyer.last(t)
	require.Equal(t, "offer_step", frame["type"])
	require.Equal(t, "buyer", frame["from_role"])
	require.Equal(t, "offer-5", frame["offer_id"])
	require.Equal(t, "pay", frame["step"])
	require.Equal(t, "Buyer is paying for offer", frame["text"])
}

func TestHandlePaymentSucceededOrdering(t *testing.T) {
	hub := NewHub()
	buyer := &stubClient{}
	hub.handleJoin(testRoom, buyer, RoleBuyer)
	buyer.frames = nil

	hub.handlePaymentSucceeded(testRoom, "offer-11")

	frames := buyer.decoded(t)
	require.Len(t, frames, 3)

	require.Equal(t, "paid_offer", frames[0]["type"])
	require.Equal(t, "offer-11", frames[0]["offer_id"])
	require.Equal(t, true, frames[0]["offer_send"])
	require.Equal(t, true, frames[0]["offer_accepted"])
	require.Equal(t, true, frames[0]["offer_paid"])

	require.Equal(t, "system", frames[1]["type"])
	require.Equal(t, "Offer successfully paid", frames[1]["text"])

	require.Equal(t, "reveal_send_offer", frames[2]["type"])
	require.Equal(t, "Trader is sending offer", frames[2]["text"])

	require.Equal(t, "offer-11", hub.rooms[testRoom].offerID)
}

func TestHandlePaymentSucceededUnknownRoom(t *testing.T) {
	hub := NewHub()

	hub.handlePaymentSucceeded(testRoom, "offer-11")
	require.Empty(t, hub.rooms)
}

func TestMailboxPreservesIssueOrder(t *testing.T) {
	hub := NewHub()

	// enqueue a join immediately followed by a broadcast for many distinct
	// rooms before the drain loop ever runs; the broadcast must never be
	// processed ahead of the join that precedes it
	clients := make([]*stubClient, 100)
	for i := range clients {
		clients[i] = &stubClient{}
		room := RoomID{BuyerID: fmt.Sprintf("buyer-%d", i), TraderID: "trader-1"}
		hub.Join(room, clients[i], RoleBuyer)
		hub.Broadcast(room, "chat", RoleBuyer, "hello")
	}

	for len(hub.mailbox) > 0 {
		hub.dispatch(<-hub.mailbox)
	}

	for i, client := range clients {
		frames := client.decoded(t)
		require.Lenf(t, frames, 2, "client %d", i)
		require.Equal(t, "presence", frames[0]["type"])
		require.Equal(t, "chat", frames[1]["type"])
		require.Equal(t, "hello", frames[1]["text"])
	}
}
