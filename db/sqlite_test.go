package db

import (
	"path/filepath"
	"testing"
	"time"

	"hive-monitor/models"
)

func newTestClient(t *testing.T) *SQLiteClient {
	t.Helper()
	client, err := NewSQLiteClient(filepath.Join(t.TempDir(), "hive.db"))
	if err != nil {
		t.Fatalf("NewSQLiteClient returned error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testRecord(device, prediction, messageID string) *models.ClassificationRecord {
	battery := 0.75
	return &models.ClassificationRecord{
		DeviceID:   device,
		Timestamp:  time.Now().Format(time.RFC3339),
		MessageID:  messageID,
		Prediction: prediction,
		Confidence: 0.85,
		Probabilities: map[string]float64{
			"normal": 0.10, "swarming": 0.85, "distress": 0.05,
		},
		BatteryLevel: &battery,
	}
}

func TestSQLiteSaveAndList(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	record := testRecord("HIVE-2001", "swarming", "msg-1")
	if err := client.Save(record); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if record.ID == 0 {
		t.Error("expected row ID to be assigned")
	}

	stored, err := client.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 record, got %d", len(stored))
	}

	got := stored[0]
	if got.DeviceID != "HIVE-2001" || got.Prediction != "swarming" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.MessageID != "msg-1" {
		t.Errorf("expected message_id msg-1, got %q", got.MessageID)
	}
	if got.Probabilities["swarming"] != 0.85 {
		t.Errorf("probabilities did not round-trip: %v", got.Probabilities)
	}
	if got.BatteryLevel == nil || *got.BatteryLevel != 0.75 {
		t.Errorf("battery level did not round-trip: %v", got.BatteryLevel)
	}
}

func TestSQLiteListByDevice(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	for i, device := range []string{"HIVE-2001", "HIVE-2002", "HIVE-2001"} {
		record := testRecord(device, "normal", "")
		record.FileName = "sample.json"
		record.ProcessedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := client.Save(record); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}

	filtered, err := client.ListByDevice("HIVE-2001")
	if err != nil {
		t.Fatalf("ListByDevice returned error: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 records for HIVE-2001, got %d", len(filtered))
	}
	for _, record := range filtered {
		if record.DeviceID != "HIVE-2001" {
			t.Errorf("unexpected device: %s", record.DeviceID)
		}
		if record.FileName != "sample.json" {
			t.Errorf("expected file_name to round-trip, got %q", record.FileName)
		}
	}
}
