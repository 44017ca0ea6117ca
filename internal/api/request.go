package api

import (
	"errors"
	"fmt"
	"math"

	"github.com/quotaflow/metering/internal/usage"
)

var errInvalidRequest = errors.New("invalid request")

// incrementRequest is the POST /usage body. The canonical shape is
// {userId, metric, amount}; the legacy single-metric shapes {tokens},
// {minutes} and {seconds} from earlier route variants are still accepted and
// normalized (minutes become seconds).
type incrementRequest struct {
	UserID string   `json:"userId"`
	Metric string   `json:"metric"`
	Amount *float64 `json:"amount"`

	// Legacy shapes.
	Tokens  *float64 `json:"tokens"`
	Minutes *float64 `json:"minutes"`
	Seconds *float64 `json:"seconds"`
}

// normalize validates the body and reduces it to the engine's canonical
// metric and unit. Exactly one metric must be present and its value must be
// strictly positive, so a malformed body can never corrupt a counter.
func (r *incrementRequest) normalize() (usage.Metric, int64, error) {
	if r.UserID == "" {
		return "", 0, fmt.Errorf("%w: missing userId", errInvalidRequest)
	}

	type candidate struct {
		metric usage.Metric
		value  float64
		scale  float64
	}
	var candidates []candidate

	if r.Metric != "" || r.Amount != nil {
		if r.Metric == "" || r.Amount == nil {
			return "", 0, fmt.Errorf("%w: metric and amount must be supplied together", errInvalidRequest)
		}
		switch usage.Metric(r.Metric) {
		case usage.MetricTokens:
			candidates = append(candidates, candidate{usage.MetricTokens, *r.Amount, 1})
		case usage.MetricMeetingSeconds:
			candidates = append(candidates, candidate{usage.MetricMeetingSeconds, *r.Amount, 1})
		default:
			return "", 0, fmt.Errorf("%w: unknown metric %q", errInvalidRequest, r.Metric)
		}
	}
	if r.Tokens != nil {
		candidates = append(candidates, candidate{usage.MetricTokens, *r.Tokens, 1})
	}
	if r.Minutes != nil {
		candidates = append(candidates, candidate{usage.MetricMeetingSeconds, *r.Minutes, 60})
	}
	if r.Seconds != nil {
		candidates = append(candidates, candidate{usage.MetricMeetingSeconds, *r.Seconds, 1})
	}

	if len(candidates) == 0 {
		return "", 0, fmt.Errorf("%w: no metric supplied", errInvalidRequest)
	}
	if len(candidates) > 1 {
		return "", 0, fmt.Errorf("%w: exactly one metric must be supplied", errInvalidRequest)
	}

	c := candidates[0]
	if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value <= 0 {
		return "", 0, fmt.Errorf("%w: amount must be a positive number", errInvalidRequest)
	}

	amount := int64(math.Round(c.value * c.scale))
	if amount <= 0 {
		return "", 0, fmt.Errorf("%w: amount rounds to zero", errInvalidRequest)
	}
	return c.metric, amount, nil
}
