package model

import "time"

// Segment is the discrete lead-quality bucket.
type Segment string

const (
	SegmentHot     Segment = "hot"
	SegmentWarm    Segment = "warm"
	SegmentCold    Segment = "cold"
	SegmentNurture Segment = "nurture"
)

// Breakdown holds the four scoring sub-scores, each 0-100.
type Breakdown struct {
	ContactCompleteness int `json:"contact_completeness"`
	DataRichness        int `json:"data_richness"`
	Seniority           int `json:"seniority"`
	Engagement          int `json:"engagement"`
}

// EngagementTier buckets the signal baseline (sum of event count times
// signal weight).
type EngagementTier string

const (
	TierCold    EngagementTier = "cold"
	TierWarm    EngagementTier = "warm"
	TierHot     EngagementTier = "hot"
	TierBurning EngagementTier = "burning"
)

// Score is a computed lead score for a company or person.
type Score struct {
	EntityID       string         `json:"entity_id"`
	EntityKind     EntityKind     `json:"entity_kind"`
	Total          int            `json:"total"`
	Breakdown      Breakdown      `json:"breakdown"`
	Segment        Segment        `json:"segment"`
	SignalBaseline int            `json:"signal_baseline"`
	EngagementTier EngagementTier `json:"engagement_tier,omitempty"`
	WeightVersion  int            `json:"weight_version,omitempty"`
	ScoredAt       time.Time      `json:"scored_at"`
}
