package alerts

import (
	"context"
	"fmt"
	"log/slog"

	"hive-monitor/models"
	"hive-monitor/utils"
)

// Alerts fire only for high-risk behavior above this confidence.
const confidenceThreshold = 0.6

// Notifier delivers an alert for one classification record. Delivery failures
// are the caller's to log; they never abort event processing.
type Notifier interface {
	Notify(record *models.ClassificationRecord) error
}

// ShouldAlert reports whether a record crosses the alerting rule:
// swarming or distress predicted with confidence above the threshold.
func ShouldAlert(record *models.ClassificationRecord) bool {
	if record.Prediction != "swarming" && record.Prediction != "distress" {
		return false
	}
	return record.Confidence > confidenceThreshold
}

// LogNotifier writes alerts to the structured log. It is the default sink
// when no SMS credentials are configured.
type LogNotifier struct{}

func (n *LogNotifier) Notify(record *models.ClassificationRecord) error {
	logger := utils.GetLogger()
	logger.WarnContext(context.Background(), "ALERT: high-risk hive behavior detected",
		slog.String("deviceID", record.DeviceID),
		slog.String("prediction", record.Prediction),
		slog.Float64("confidence", record.Confidence),
		slog.String("source", record.SourceRef()),
	)
	return nil
}

// FormatAlertBody renders the human-readable alert message shared by all
// delivery channels.
func FormatAlertBody(record *models.ClassificationRecord) string {
	return fmt.Sprintf("Hive %s: %s detected with confidence %.2f (at %s)",
		record.DeviceID, record.Prediction, record.Confidence, record.Timestamp)
}
