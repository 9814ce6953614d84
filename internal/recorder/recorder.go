package recorder

import (
	"time"

	"DipSentinel/internal/model"
)

// AlertEvent is one delivered alert.
type AlertEvent struct {
	Alert   model.Alert
	Message string
}

// RecommendationEvent is the recommendation computed for a symbol on a tick.
type RecommendationEvent struct {
	Symbol         string
	Price          float64
	Recommendation *model.Recommendation
	At             time.Time
}

// ComparisonEvent is a consolidated multi-symbol alert.
type ComparisonEvent struct {
	Opportunities []model.Opportunity
	At            time.Time
}

// Recorder is a write-only audit log. Nothing is read back on startup.
type Recorder interface {
	RecordAlert(evt *AlertEvent) error
	RecordRecommendation(evt *RecommendationEvent) error
	RecordComparison(evt *ComparisonEvent) error
	Close() error
}
