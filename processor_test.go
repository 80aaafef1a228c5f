package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hive-monitor/hive"
	"hive-monitor/models"
	"hive-monitor/records"
)

// captureNotifier records alert deliveries for assertions.
type captureNotifier struct {
	delivered []*models.ClassificationRecord
}

func (n *captureNotifier) Notify(record *models.ClassificationRecord) error {
	n.delivered = append(n.delivered, record)
	return nil
}

func newTestProcessor(t *testing.T) (*eventProcessor, *records.FileStore, *captureNotifier) {
	t.Helper()
	store := records.NewFileStore(filepath.Join(t.TempDir(), "classifications.json"))
	notifier := &captureNotifier{}
	processor := newEventProcessor(hive.NewBehaviorClassifier(nil), store, notifier)
	return processor, store, notifier
}

func swarmingPayload(device string) *models.SensorPayload {
	return &models.SensorPayload{
		DeviceID:  device,
		Timestamp: "2026-08-29T10:00:00Z",
		Audio: &models.AudioFeatures{
			Frequencies: map[string]float64{
				"120": 8, "150": 9, "180": 10, "210": 11,
			},
			AudioDensity:      30,
			AudioDensityRatio: 0.9,
			DensityVariation:  45,
		},
	}
}

func TestProcessPayloadPersistsAndAlerts(t *testing.T) {
	t.Parallel()

	processor, store, notifier := newTestProcessor(t)

	record, err := processor.processPayload(swarmingPayload("HIVE-4001"), "", "msg_1")
	if err != nil {
		t.Fatalf("processPayload returned error: %v", err)
	}
	if record.Prediction != "swarming" {
		t.Fatalf("expected swarming, got %s", record.Prediction)
	}
	if record.MessageID != "msg_1" {
		t.Errorf("expected message id msg_1, got %q", record.MessageID)
	}
	if record.ProcessedAt.IsZero() {
		t.Error("expected server-assigned processed_at")
	}

	stored, err := store.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(stored))
	}

	if len(notifier.delivered) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(notifier.delivered))
	}
	if notifier.delivered[0].DeviceID != "HIVE-4001" {
		t.Errorf("alert carried wrong device: %s", notifier.delivered[0].DeviceID)
	}
}

func TestProcessPayloadNormalReadingDoesNotAlert(t *testing.T) {
	t.Parallel()

	processor, _, notifier := newTestProcessor(t)

	payload := &models.SensorPayload{
		DeviceID: "HIVE-4002",
		Audio: &models.AudioFeatures{
			Frequencies:       map[string]float64{"120": 5, "150": 5, "180": 5, "210": 5},
			AudioDensity:      10,
			AudioDensityRatio: 0.5,
			DensityVariation:  12,
		},
	}

	record, err := processor.processPayload(payload, "", "msg_2")
	if err != nil {
		t.Fatalf("processPayload returned error: %v", err)
	}
	if record.Prediction != "normal" {
		t.Fatalf("expected normal, got %s", record.Prediction)
	}
	if len(notifier.delivered) != 0 {
		t.Fatalf("expected no alerts for normal reading, got %d", len(notifier.delivered))
	}
}

func TestProcessPayloadFillsDefaults(t *testing.T) {
	t.Parallel()

	processor, _, _ := newTestProcessor(t)

	// Missing audio: empty frequency map plus three zero metrics still
	// produces a classifiable 3-element vector.
	record, err := processor.processPayload(&models.SensorPayload{}, "", "msg_3")
	if err != nil {
		t.Fatalf("processPayload returned error: %v", err)
	}
	if record.DeviceID != "unknown" {
		t.Errorf("expected device default 'unknown', got %q", record.DeviceID)
	}
	if record.Timestamp == "" {
		t.Error("expected timestamp default to be filled")
	}
	if record.Prediction != "normal" {
		t.Errorf("expected normal for silent reading, got %s", record.Prediction)
	}
}

func TestProcessPayloadRejectsMalformedFrequencyKey(t *testing.T) {
	t.Parallel()

	processor, store, notifier := newTestProcessor(t)

	payload := &models.SensorPayload{
		DeviceID: "HIVE-4003",
		Audio: &models.AudioFeatures{
			Frequencies: map[string]float64{"not-a-number": 1.0},
		},
	}

	if _, err := processor.processPayload(payload, "", "msg_4"); err == nil {
		t.Fatal("expected error for malformed frequency key")
	}

	// failed events leave no record and no alert behind
	stored, err := store.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("expected no records after failed event, got %d", len(stored))
	}
	if len(notifier.delivered) != 0 {
		t.Errorf("expected no alerts after failed event, got %d", len(notifier.delivered))
	}
}

func TestProcessDirectorySkipsBadFiles(t *testing.T) {
	t.Parallel()

	processor, store, _ := newTestProcessor(t)

	dir := t.TempDir()
	good, err := json.Marshal(swarmingPayload("HIVE-4004"))
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	writeFixture(t, filepath.Join(dir, "good.json"), good)
	writeFixture(t, filepath.Join(dir, "broken.json"), []byte("{not json"))
	writeFixture(t, filepath.Join(dir, "notes.txt"), []byte("not a payload"))

	processed, failed, err := processor.processDirectory(dir)
	if err != nil {
		t.Fatalf("processDirectory returned error: %v", err)
	}
	if processed != 1 || failed != 1 {
		t.Fatalf("expected 1 processed / 1 failed, got %d / %d", processed, failed)
	}

	stored, err := store.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(stored))
	}
	if stored[0].FileName != "good.json" {
		t.Errorf("expected file_name good.json, got %q", stored[0].FileName)
	}
}

func TestReadingsHandlerRoundTrip(t *testing.T) {
	t.Parallel()

	processor, _, _ := newTestProcessor(t)
	handler := newReadingsHandler(processor)

	body, err := json.Marshal(swarmingPayload("HIVE-4005"))
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/readings", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var record models.ClassificationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if record.Prediction != "swarming" {
		t.Errorf("expected swarming, got %s", record.Prediction)
	}
	if record.MessageID == "" {
		t.Error("expected generated message id on response record")
	}
}

func TestReadingsHandlerRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	processor, _, _ := newTestProcessor(t)
	handler := newReadingsHandler(processor)

	req := httptest.NewRequest(http.MethodPost, "/api/readings", strings.NewReader("{oops"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestClassificationsHandlerFiltersByDevice(t *testing.T) {
	t.Parallel()

	processor, store, _ := newTestProcessor(t)
	for _, device := range []string{"HIVE-4006", "HIVE-4007"} {
		if _, err := processor.processPayload(swarmingPayload(device), "", "msg"); err != nil {
			t.Fatalf("processPayload returned error: %v", err)
		}
	}

	handler := newClassificationsHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/classifications?device=HIVE-4006", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var recordList []models.ClassificationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &recordList); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(recordList) != 1 || recordList[0].DeviceID != "HIVE-4006" {
		t.Fatalf("unexpected filtered result: %+v", recordList)
	}
}

func writeFixture(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", path, err)
	}
}
