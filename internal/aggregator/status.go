package aggregator

import (
	"xui-sub-hub/internal/models"
)

// deriveInactiveReason picks the single reason a subscriber got zero
// links. The precedence order here is observable behavior; do not
// reorder the cases.
func deriveInactiveReason(agg *models.AggregationResult, policyRestrictive bool) models.InactiveReason {
	switch {
	case agg.MatchedClientsRaw == 0 && (policyRestrictive || agg.FilteredByPolicy > 0):
		return models.ReasonBlockedByPolicy
	case agg.MatchedClientsRaw == 0:
		return models.ReasonUserNotFound
	case agg.MatchedClientsActive == 0 && agg.FilteredByPolicy > 0:
		return models.ReasonBlockedByPolicy
	case agg.MatchedClientsActive == 0 && (agg.FilteredExpired > 0 || agg.FilteredDisabled > 0):
		return models.ReasonAllExpiredOrDisabled
	default:
		return models.ReasonNoLinksFound
	}
}

// deriveSourceMode classifies where the link set came from.
func deriveSourceMode(nativeLinks, reconstructedLinks int) models.SourceMode {
	switch {
	case nativeLinks > 0 && reconstructedLinks > 0:
		return models.SourceMixed
	case nativeLinks > 0:
		return models.SourceNative
	case reconstructedLinks > 0:
		return models.SourceReconstructed
	default:
		return models.SourceNone
	}
}
