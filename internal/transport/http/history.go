package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"agegate/internal/domain"
	dErrors "agegate/pkg/domain-errors"
)

// eventSummary is the ledger view both history endpoints return. Reference
// ids and derived outcomes only.
type eventSummary struct {
	ID                string  `json:"id"`
	BuyerReferenceID  string  `json:"buyer_reference_id"`
	DealerReferenceID string  `json:"dealer_reference_id,omitempty"`
	AgeVerified       bool    `json:"age_verified"`
	AddressVerified   bool    `json:"address_verified"`
	Confidence        float64 `json:"confidence"`
	AnchorRef         string  `json:"anchor_ref,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

func eventSummaries(events []domain.ComplianceEvent) []eventSummary {
	summaries := make([]eventSummary, 0, len(events))
	for _, event := range events {
		summaries = append(summaries, eventSummary{
			ID:                event.ID,
			BuyerReferenceID:  string(event.BuyerReferenceID),
			DealerReferenceID: string(event.DealerReferenceID),
			AgeVerified:       event.AgeVerified,
			AddressVerified:   event.AddressVerified,
			Confidence:        event.Confidence,
			AnchorRef:         event.AnchorRef,
			CreatedAt:         event.CreatedAt.Format(time.RFC3339),
		})
	}
	return summaries
}

// historyParams parses the shared filter and pagination query parameters.
func historyParams(r *http.Request) (domain.LedgerFilter, domain.Page, error) {
	var filter domain.LedgerFilter
	query := r.URL.Query()

	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, domain.Page{}, dErrors.New(dErrors.CodeValidation, "from must be RFC3339")
		}
		filter.From = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, domain.Page{}, dErrors.New(dErrors.CodeValidation, "to must be RFC3339")
		}
		filter.To = &to
	}
	for param, target := range map[string]**bool{
		"age_verified":     &filter.AgeVerified,
		"address_verified": &filter.AddressVerified,
	} {
		if raw := query.Get(param); raw != "" {
			value, err := strconv.ParseBool(raw)
			if err != nil {
				return filter, domain.Page{}, dErrors.Newf(dErrors.CodeValidation, "%s must be a boolean", param)
			}
			*target = &value
		}
	}

	var page domain.Page
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, page, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer")
		}
		page.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, page, dErrors.New(dErrors.CodeValidation, "offset must be a non-negative integer")
		}
		page.Offset = offset
	}
	return filter, page, nil
}
