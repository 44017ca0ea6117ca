package api

import (
	"errors"
	"testing"

	"github.com/quotaflow/metering/internal/usage"
)

func floatPtr(v float64) *float64 { return &v }

func TestNormalize_CanonicalShape(t *testing.T) {
	req := incrementRequest{UserID: "u", Metric: "meetingSeconds", Amount: floatPtr(90)}

	metric, amount, err := req.normalize()
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if metric != usage.MetricMeetingSeconds || amount != 90 {
		t.Errorf("Expected meetingSeconds/90, got %s/%d", metric, amount)
	}
}

func TestNormalize_MinutesScaleToSeconds(t *testing.T) {
	req := incrementRequest{UserID: "u", Minutes: floatPtr(2.5)}

	metric, amount, err := req.normalize()
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if metric != usage.MetricMeetingSeconds || amount != 150 {
		t.Errorf("Expected meetingSeconds/150 for 2.5 minutes, got %s/%d", metric, amount)
	}
}

func TestNormalize_MetricWithoutAmount(t *testing.T) {
	req := incrementRequest{UserID: "u", Metric: "tokens"}

	if _, _, err := req.normalize(); !errors.Is(err, errInvalidRequest) {
		t.Errorf("Expected errInvalidRequest, got %v", err)
	}
}

func TestNormalize_CanonicalPlusLegacyRejected(t *testing.T) {
	req := incrementRequest{UserID: "u", Metric: "tokens", Amount: floatPtr(10), Seconds: floatPtr(30)}

	if _, _, err := req.normalize(); !errors.Is(err, errInvalidRequest) {
		t.Errorf("Expected errInvalidRequest for ambiguous body, got %v", err)
	}
}

func TestNormalize_TinyFractionRoundsToZero(t *testing.T) {
	req := incrementRequest{UserID: "u", Tokens: floatPtr(0.2)}

	if _, _, err := req.normalize(); !errors.Is(err, errInvalidRequest) {
		t.Errorf("Expected errInvalidRequest for sub-unit amount, got %v", err)
	}
}
