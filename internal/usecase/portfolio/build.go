package portfolio

import (
	"strings"

	"rateKit/internal/domain"
	"rateKit/internal/ids"
)

// DefaultLimit is how many recent items a sync requests from a platform.
const DefaultLimit = 20

var disclosureKeywords = []string{"#ad", "#sponsored", "#협찬", "#제공", "#partnership", "#프로모션"}

const longFormMarker = "sponsored by"

// DetectSponsored is a case-insensitive substring match against the disclosure
// keywords. Long-form video also matches "sponsored by".
func DetectSponsored(text string, longForm bool) bool {
	lower := strings.ToLower(text)
	for _, kw := range disclosureKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return longForm && strings.Contains(lower, longFormMarker)
}

func ContentTypeOf(mediaType string) domain.ContentType {
	if strings.EqualFold(strings.TrimSpace(mediaType), string(domain.ContentVideo)) {
		return domain.ContentVideo
	}
	return domain.ContentImage
}

// Build maps raw content into the full replacement set for one account.
func Build(accountID string, platform domain.Platform, raw []domain.RawContentItem) []domain.PortfolioItem {
	items := make([]domain.PortfolioItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, domain.PortfolioItem{
			ID:           ids.New(),
			AccountID:    accountID,
			Platform:     platform,
			ContentURL:   r.URL,
			ThumbnailURL: r.ThumbnailURL,
			ContentType:  ContentTypeOf(r.MediaType),
			Caption:      r.Caption,
			Likes:        clamp(r.Likes),
			Comments:     clamp(r.Comments),
			Views:        clamp(r.Views),
			IsSponsored:  DetectSponsored(r.DisclosureText, r.LongForm),
			PostedAt:     r.PostedAt.UTC(),
		})
	}
	return items
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
