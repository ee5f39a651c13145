package indicators

import (
	"context"
	"time"

	"stock_radar/models"
)

// Indicator is one named screening rule. Fetch pulls the raw candidate data
// from wherever the rule sources it; Normalize shapes that data into ranked
// snapshot rows. Every indicator, however sourced, normalizes to the same
// row shape so the catalog can treat them uniformly.
type Indicator interface {
	Code() string
	Name() string
	Fetch(ctx context.Context) (any, error)
	Normalize(raw any, capturedAt time.Time) ([]models.IndicatorRankSnapshot, error)
}
