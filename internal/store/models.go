package store

import (
	"encoding/json"
	"time"
)

// Analysis persists a single analyzed message together with its verdict.
// Structured payloads are stored as JSON columns so the history endpoints
// can replay the full API response.
type Analysis struct {
	ID                  uint   `gorm:"primaryKey"`
	UUID                string `gorm:"size:36;uniqueIndex"`
	Source              string `gorm:"size:32;index"`
	RiskLevel           string `gorm:"size:16;index"`
	RiskScore           float64
	Summary             string `gorm:"type:text"`
	FeaturesJSON        string `gorm:"type:text"`
	SuspiciousJSON      string `gorm:"type:text"`
	RecommendationsJSON string `gorm:"type:text"`
	DetailedAnalysis    string `gorm:"type:text"`
	ProcessingTimeMs    int64
	CreatedAt           time.Time `gorm:"index"`
}

// SetFeatures encodes the feature flags into the JSON column.
func (a *Analysis) SetFeatures(flags map[string]bool) {
	a.FeaturesJSON = mustJSON(flags)
}

// Features decodes the feature flags column.
func (a *Analysis) Features() map[string]bool {
	out := map[string]bool{}
	if a.FeaturesJSON != "" {
		_ = json.Unmarshal([]byte(a.FeaturesJSON), &out)
	}
	return out
}

// SetSuspiciousElements encodes the suspicious element categories.
func (a *Analysis) SetSuspiciousElements(elements map[string][]string) {
	a.SuspiciousJSON = mustJSON(elements)
}

// SuspiciousElements decodes the suspicious element column.
func (a *Analysis) SuspiciousElements() map[string][]string {
	out := map[string][]string{}
	if a.SuspiciousJSON != "" {
		_ = json.Unmarshal([]byte(a.SuspiciousJSON), &out)
	}
	return out
}

// SetRecommendations encodes the recommendation list.
func (a *Analysis) SetRecommendations(recs []string) {
	a.RecommendationsJSON = mustJSON(recs)
}

// Recommendations decodes the recommendation column.
func (a *Analysis) Recommendations() []string {
	var out []string
	if a.RecommendationsJSON != "" {
		_ = json.Unmarshal([]byte(a.RecommendationsJSON), &out)
	}
	return out
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
