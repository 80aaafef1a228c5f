package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hive-monitor/alerts"
	"hive-monitor/hive"
	"hive-monitor/models"
	"hive-monitor/utils"

	"github.com/mdobak/go-xerrors"
)

// RecordStore is the persistence surface the processor writes through. All
// three backends (JSON file, SQLite, MongoDB) implement it.
type RecordStore interface {
	Save(record *models.ClassificationRecord) error
	List() ([]models.ClassificationRecord, error)
	ListByDevice(deviceID string) ([]models.ClassificationRecord, error)
	Close() error
}

// eventProcessor runs the per-event pipeline: normalize payload, build the
// feature vector, classify, persist, alert, notify listeners. A failed event
// produces no record and no alert; the error is the caller's to log.
type eventProcessor struct {
	classifier *hive.BehaviorClassifier
	store      RecordStore
	notifier   alerts.Notifier

	// onRecord is invoked after a record is persisted (live dashboard feed).
	onRecord func(record *models.ClassificationRecord)
}

func newEventProcessor(classifier *hive.BehaviorClassifier, store RecordStore, notifier alerts.Notifier) *eventProcessor {
	return &eventProcessor{
		classifier: classifier,
		store:      store,
		notifier:   notifier,
	}
}

// processPayload classifies one sensor payload and persists the result.
// Exactly one of fileName/messageID names the delivery source.
func (p *eventProcessor) processPayload(payload *models.SensorPayload, fileName, messageID string) (*models.ClassificationRecord, error) {
	logger := utils.GetLogger()
	ctx := context.Background()

	payload.Normalize(time.Now())

	vector, err := hive.BuildFeatureVector(payload.Audio.Frequencies, hive.DensityMetrics{
		AudioDensity:      payload.Audio.AudioDensity,
		AudioDensityRatio: payload.Audio.AudioDensityRatio,
		DensityVariation:  payload.Audio.DensityVariation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build feature vector: %w", err)
	}

	result, err := p.classifier.Classify(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to classify reading: %w", err)
	}

	record := &models.ClassificationRecord{
		DeviceID:      payload.DeviceID,
		Timestamp:     payload.Timestamp,
		FileName:      fileName,
		MessageID:     messageID,
		Prediction:    result.Prediction,
		Confidence:    result.Confidence,
		Probabilities: result.Probabilities,
		ProcessedAt:   time.Now().UTC(),
		BatteryLevel:  payload.BatteryLevel,
		Temperature:   payload.Temperature,
		Humidity:      payload.Humidity,
	}

	if err := p.store.Save(record); err != nil {
		return nil, fmt.Errorf("failed to persist record: %w", err)
	}

	logger.InfoContext(ctx, "classified reading",
		slog.String("deviceID", record.DeviceID),
		slog.String("prediction", record.Prediction),
		slog.Float64("confidence", record.Confidence),
		slog.String("source", record.SourceRef()),
	)

	if alerts.ShouldAlert(record) {
		// Alert delivery is best effort; a notifier outage never fails
		// the event.
		if err := p.notifier.Notify(record); err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "failed to deliver alert", slog.Any("error", err))
		}
	}

	if p.onRecord != nil {
		p.onRecord(record)
	}

	return record, nil
}

// processFile handles one uploaded payload file.
func (p *eventProcessor) processFile(path string) (*models.ClassificationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}

	var payload models.SensorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse payload file: %w", err)
	}

	return p.processPayload(&payload, filepath.Base(path), "")
}

// processDirectory scans a directory of uploaded payload files, processing
// each in turn. One bad file never blocks the rest; failures are logged and
// counted.
func (p *eventProcessor) processDirectory(dir string) (processed, failed int, err error) {
	logger := utils.GetLogger()
	ctx := context.Background()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read payload directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".json") {
			logger.InfoContext(ctx, "skipping non-JSON file", slog.String("file", name))
			continue
		}

		if _, err := p.processFile(filepath.Join(dir, name)); err != nil {
			failed++
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "failed to process payload file",
				slog.String("file", name),
				slog.Any("error", err),
			)
			continue
		}
		processed++
	}

	return processed, failed, nil
}
