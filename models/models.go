package models

import (
	"time"
)

// AudioFeatures is the audio block of a device payload: per-bin amplitudes
// keyed by frequency (numeric, carried as text) plus three density scalars.
type AudioFeatures struct {
	Frequencies       map[string]float64 `json:"frequencies"`
	AudioDensity      float64            `json:"audio_density"`
	AudioDensityRatio float64            `json:"audio_density_ratio"`
	DensityVariation  float64            `json:"density_variation"`
}

// PayloadMetadata carries capture metadata the devices attach to each sample.
type PayloadMetadata struct {
	SampleRate int     `json:"sample_rate,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Format     string  `json:"format,omitempty"`
}

// SensorPayload is one JSON reading uploaded by a hive sensor. Optional
// fields stay pointers so Normalize can tell "absent" from "zero".
type SensorPayload struct {
	DeviceID     string           `json:"device_id"`
	Timestamp    string           `json:"timestamp"`
	Audio        *AudioFeatures   `json:"audio,omitempty"`
	BatteryLevel *float64         `json:"battery_level,omitempty"`
	Temperature  *float64         `json:"temperature,omitempty"`
	Humidity     *float64         `json:"humidity,omitempty"`
	Metadata     *PayloadMetadata `json:"metadata,omitempty"`

	// TrueBehavior is only present on simulator output, where the ground
	// truth is known. Real devices never send it.
	TrueBehavior string `json:"true_behavior,omitempty"`
}

// Normalize fills payload defaults in one place so downstream code never
// guards against missing fields: unknown device, current timestamp, empty
// audio block with zeroed metrics.
func (p *SensorPayload) Normalize(now time.Time) {
	if p.DeviceID == "" {
		p.DeviceID = "unknown"
	}
	if p.Timestamp == "" {
		p.Timestamp = now.Format(time.RFC3339)
	}
	if p.Audio == nil {
		p.Audio = &AudioFeatures{}
	}
	if p.Audio.Frequencies == nil {
		p.Audio.Frequencies = map[string]float64{}
	}
}

// ClassificationRecord is the persisted result of classifying one payload.
type ClassificationRecord struct {
	ID            int64              `json:"id,omitempty" bson:"id,omitempty"`
	DeviceID      string             `json:"device_id" bson:"device_id"`
	Timestamp     string             `json:"timestamp" bson:"timestamp"`
	FileName      string             `json:"file_name,omitempty" bson:"file_name,omitempty"`
	MessageID     string             `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Prediction    string             `json:"prediction" bson:"prediction"`
	Confidence    float64            `json:"confidence" bson:"confidence"`
	Probabilities map[string]float64 `json:"probabilities" bson:"probabilities"`
	ProcessedAt   time.Time          `json:"processed_at" bson:"processed_at"`

	// Telemetry carried through for the dashboard.
	BatteryLevel *float64 `json:"battery_level,omitempty" bson:"battery_level,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" bson:"temperature,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty" bson:"humidity,omitempty"`
}

// SourceRef names whichever delivery reference the record carries.
func (r *ClassificationRecord) SourceRef() string {
	if r.FileName != "" {
		return r.FileName
	}
	return r.MessageID
}
