package drafts

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tastyrock/marketplace-api/pkg/response"
)

var ErrDraftNotFound = errors.New("draft not found")

// Service handles draft creation and retrieval
type Service struct {
	db *Database
}

// NewService creates a drafts service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateDraft persists the handoff record for an authorized offer and
// returns the fresh draft id. Header and items commit atomically.
// Parameters:
//   - offerID: the verified offer this draft settles
//   - partnerTradeURL: where the client trade flow will send the items
//   - autosend: whether the browser extension may submit without review
//   - give: the items to transfer, straight from the verified ledger
func (s *Service) CreateDraft(offerID, partnerTradeURL string, autosend bool, give []DraftItem) (string, error) {
	logger := log.With().
		Str("offer_id", offerID).
		Str("service", "drafts").
		Logger()

	draft := &Draft{
		DraftID:         uuid.New().String(),
		OfferID:         offerID,
		PartnerTradeURL: partnerTradeURL,
		Autosend:        autosend,
		CreatedAt:       time.Now(),
	}

	for i := range give {
		give[i].Side = SideGive
	}

	if err := s.db.CreateDraft(draft, give); err != nil {
		logger.Error().Err(err).Msg("draft creation failed")
		return "", err
	}

	logger.Info().
		Str("draft_id", draft.DraftID).
		Int("item_count", len(give)).
		Msg("draft created")

	return draft.DraftID, nil
}

// GetDraft returns the persisted draft content. Drafts are immutable, so
// repeated fetches always return the same result.
func (s *Service) GetDraft(draftID string) (*DraftContent, error) {
	draft, err := s.db.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrDraftNotFound
	}

	items, err := s.db.GetDraftItems(draftID)
	if err != nil {
		return nil, err
	}

	return &DraftContent{
		DraftID:  draft.DraftID,
		OfferID:  draft.OfferID,
		Autosend: draft.Autosend,
		Give:     items,
	}, nil
}

// GinHandlers contains HTTP handlers for draft endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates the HTTP handlers for draft endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetDraftHandler handles GET requests from the client trade flow
// URL parameter: draft_id
func (h *GinHandlers) GetDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		draftID := c.Param("draft_id")
		if draftID == "" {
			response.BadRequest(c, "Draft ID is required")
			return
		}

		content, err := h.service.GetDraft(draftID)
		if errors.Is(err, ErrDraftNotFound) {
			response.NotFound(c, "Draft not found")
			return
		}
		response.Handle(c, content, err)
	}
}
