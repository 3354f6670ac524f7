package chat

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Outbound frame types that are not simple echoes of an inbound event kind
const (
	frameTypePresence    = "presence"
	frameTypeOfferSystem = "offer_system"
	frameTypeOfferItems  = "offer_items"
	frameTypeOfferStep   = "offer_step"
	frameTypeSystem      = "system"
	frameTypeRevealSend  = "reveal_send_offer"
	frameTypePaidOffer   = "paid_offer"
	frameTypeError       = "error"
)

type presenceFrame struct {
	Type          string      `json:"type"`
	Count         int         `json:"count"`
	BuyerPresent  bool        `json:"buyer_present"`
	TraderPresent bool        `json:"trader_present"`
	OfferID       interface{} `json:"offer_id"`
}

type textFrame struct {
	Type     string      `json:"type"`
	FromRole string      `json:"from_role"`
	OfferID  interface{} `json:"offer_id"`
	Text     string      `json:"text"`
}

type itemsFrame struct {
	Type     string          `json:"type"`
	FromRole string          `json:"from_role"`
	OfferID  interface{}     `json:"offer_id"`
	Items    json.RawMessage `json:"items"`
}

type stepFrame struct {
	Type     string      `json:"type"`
	FromRole string      `json:"from_role"`
	OfferID  interface{} `json:"offer_id"`
	Step     string      `json:"step"`
	Text     string      `json:"text"`
}

type stateFrame struct {
	Type     string      `json:"type"`
	OfferID  interface{} `json:"offer_id"`
	Dirty    bool        `json:"offer_dirty"`
	Send     bool        `json:"offer_send"`
	Accepted bool        `json:"offer_accepted"`
	Paid     bool        `json:"offer_paid"`
}

type errorFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// nullableID renders an unset offer id as JSON null, matching what clients
// expect when no offer is claimed for the room
func nullableID(offerID string) interface{} {
	if offerID == "" {
		return nil
	}
	return offerID
}

// marshalFrame returns nil on failure; callers skip nil payloads. Frames are
// plain structs, so a failure here is a bug worth logging, not propagating.
func marshalFrame(frame interface{}) []byte {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Str("component", "chat_hub").Msg("failed to marshal frame")
		return nil
	}
	return payload
}
