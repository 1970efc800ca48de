package ai

import (
	"context"
	"strings"
)

type assessorChain struct {
	primary  Assessor
	fallback Assessor
}

// WithFallback returns an assessor that first tries the primary
// implementation and falls back to the provided assessor when the primary
// is unavailable or produces an unusable response. A blocked assessment
// from the primary is a valid outcome and is not retried downstream.
func WithFallback(primary, fallback Assessor) Assessor {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &assessorChain{primary: primary, fallback: fallback}
}

func (c *assessorChain) Enabled() bool {
	if c == nil {
		return false
	}
	if c.primary != nil && c.primary.Enabled() {
		return true
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return true
	}
	return false
}

func (c *assessorChain) Assess(ctx context.Context, input Input) (Assessment, error) {
	if c == nil {
		return Assessment{}, ErrDisabled
	}
	if c.primary != nil && c.primary.Enabled() {
		if assessment, err := c.primary.Assess(ctx, input); err == nil {
			if assessment.Blocked || strings.TrimSpace(assessment.Narrative) != "" {
				return assessment, nil
			}
		}
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Assess(ctx, input)
	}
	return Assessment{}, ErrDisabled
}
