package alerts

import (
	"strings"
	"testing"

	"hive-monitor/models"
)

func record(prediction string, confidence float64) *models.ClassificationRecord {
	return &models.ClassificationRecord{
		DeviceID:   "HIVE-3001",
		Timestamp:  "2026-08-29T12:00:00Z",
		Prediction: prediction,
		Confidence: confidence,
	}
}

func TestShouldAlert(t *testing.T) {
	t.Parallel()

	cases := []struct {
		prediction string
		confidence float64
		want       bool
	}{
		{"swarming", 0.85, true},
		{"distress", 0.85, true},
		{"normal", 0.99, false},
		{"swarming", 0.60, false}, // threshold is strict
		{"swarming", 0.61, true},
		{"distress", 0.10, false},
	}

	for _, tc := range cases {
		got := ShouldAlert(record(tc.prediction, tc.confidence))
		if got != tc.want {
			t.Errorf("ShouldAlert(%s, %.2f) = %v, want %v",
				tc.prediction, tc.confidence, got, tc.want)
		}
	}
}

func TestFormatAlertBody(t *testing.T) {
	t.Parallel()

	body := FormatAlertBody(record("swarming", 0.85))
	for _, fragment := range []string{"HIVE-3001", "swarming", "0.85"} {
		if !strings.Contains(body, fragment) {
			t.Errorf("alert body missing %q: %s", fragment, body)
		}
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	t.Parallel()

	notifier := &LogNotifier{}
	if err := notifier.Notify(record("distress", 0.9)); err != nil {
		t.Fatalf("LogNotifier returned error: %v", err)
	}
}
