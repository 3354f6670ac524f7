package chat

import (
	"encoding/json"
)

// EventType is the tagged kind of an inbound client frame
type EventType string

// Inbound event kinds. Anything else parses as EventUnknown and is dropped
// by the session without a reply.
const (
	EventChat           EventType = "chat"
	EventSystem         EventType = "system"
	EventOfferItems     EventType = "offer_items"
	EventOfferLog       EventType = "offer_log"
	EventItemAsking     EventType = "item_asking"
	EventSetOffer       EventType = "set_offer"
	EventSendOffer      EventType = "send_offer"
	EventAcceptOffer    EventType = "accept_offer"
	EventPaidOffer      EventType = "paid_offer"
	EventClearOffer     EventType = "clear_offer"
	EventStepConnecting EventType = "offer_step_connecting"
	EventStepAccepting  EventType = "offer_step_accepting"
	EventStepPaying     EventType = "offer_step_paying"
	EventUnknown        EventType = "unknown"
)

// Event is a decoded inbound frame. Fields are populated per kind: Text for
// chat-like events, OfferID for set_offer, Items for offer_items. Raw keeps
// the original payload for events that are relayed verbatim.
type Event struct {
	Type    EventType
	Text    string
	OfferID string
	Items   json.RawMessage
	Raw     json.RawMessage
}

type wireEvent struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	OfferID string          `json:"offer_id"`
	Items   json.RawMessage `json:"items"`
}

var knownEvents = map[EventType]bool{
	EventChat:           true,
	EventSystem:         true,
	EventOfferItems:     true,
	EventOfferLog:       true,
	EventItemAsking:     true,
	EventSetOffer:       true,
	EventSendOffer:      true,
	EventAcceptOffer:    true,
	EventPaidOffer:      true,
	EventClearOffer:     true,
	EventStepConnecting: true,
	EventStepAccepting:  true,
	EventStepPaying:     true,
}

// ParseEvent decodes one inbound frame. Malformed JSON returns an error;
// well-formed frames with an unrecognized type come back as EventUnknown so
// the caller can drop them silently.
func ParseEvent(data []byte) (Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return Event{}, err
	}

	kind := EventType(wire.Type)
	if !knownEvents[kind] {
		kind = EventUnknown
	}

	return Event{
		Type:    kind,
		Text:    wire.Text,
		OfferID: wire.OfferID,
		Items:   wire.Items,
		Raw:     json.RawMessage(data),
	}, nil
}
