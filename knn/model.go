package knn

// Prototype-based nearest-neighbour model for hive behavior classification.
//
// The artifact is a JSON array of labeled feature vectors snapshotted from
// classified sample payloads. At load time a z-score scaler is computed from
// the raw prototypes, then every prototype is scaled and L2-normalised.
// Prediction runs the same transform on the incoming vector, finds the k
// nearest prototypes by Euclidean distance and aggregates inverse-distance
// weights per label into a probability distribution over the fixed label
// table.

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"hive-monitor/hive"
)

const distanceEpsilon = 1e-9

// Prototype is a single labeled feature vector stored in the model artifact.
type Prototype struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Source   string    `json:"source,omitempty"`
	Features []float64 `json:"features"`
}

// LabelStat summarises prototype density per label.
type LabelStat struct {
	Label      string `json:"label"`
	Prototypes int    `json:"prototypes"`
}

// Stats exposes metadata about the loaded prototype collection.
type Stats struct {
	PrototypeCount int         `json:"prototypeCount"`
	LabelCount     int         `json:"labelCount"`
	Labels         []LabelStat `json:"labels"`
	Neighbours     int         `json:"neighbours"`
	Path           string      `json:"path,omitempty"`
}

// Model performs k-nearest prototype lookups in the feature space. Immutable
// after construction; safe for concurrent use.
type Model struct {
	prototypes []Prototype
	k          int
	scaler     *FeatureScaler
	path       string
}

type distancePair struct {
	index    int
	distance float64
}

// LoadModel reads a prototype artifact from path. A missing artifact is not
// an error: it returns (nil, nil) and the caller falls back to rule-based
// classification.
func LoadModel(path string, k int) (*Model, error) {
	if k <= 0 {
		return nil, fmt.Errorf("invalid neighbour count: %d", k)
	}

	resolvedPath := filepath.Clean(path)
	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load model artifact (%s): %w", resolvedPath, err)
	}

	var prototypes []Prototype
	if err := json.Unmarshal(data, &prototypes); err != nil {
		return nil, fmt.Errorf("unable to parse model artifact: %w", err)
	}

	model, err := NewModelFromPrototypes(prototypes, k)
	if err != nil {
		return nil, fmt.Errorf("invalid model artifact (%s): %w", resolvedPath, err)
	}
	model.path = resolvedPath

	return model, nil
}

// NewModelFromPrototypes builds a model from in-memory prototypes, computing
// the scaler and normalising every stored vector.
func NewModelFromPrototypes(prototypes []Prototype, k int) (*Model, error) {
	if k <= 0 {
		return nil, fmt.Errorf("invalid neighbour count: %d", k)
	}
	if len(prototypes) == 0 {
		return nil, errors.New("no prototypes provided")
	}

	featureCount := len(prototypes[0].Features)
	for _, proto := range prototypes {
		if len(proto.Features) == 0 {
			return nil, fmt.Errorf("prototype %s has no features", proto.ID)
		}
		if len(proto.Features) != featureCount {
			return nil, fmt.Errorf("prototype %s has %d features, expected %d",
				proto.ID, len(proto.Features), featureCount)
		}
		if labelIndex(proto.Label) < 0 {
			return nil, fmt.Errorf("prototype %s has unknown label %q", proto.ID, proto.Label)
		}
	}

	// Scaler comes from the raw vectors; prototypes are stored scaled and
	// normalised so Predict only transforms the incoming vector.
	scaler, err := NewFeatureScalerFromPrototypes(prototypes)
	if err != nil {
		return nil, fmt.Errorf("failed to compute feature scaler: %w", err)
	}

	stored := make([]Prototype, len(prototypes))
	for idx, proto := range prototypes {
		scaled := scaler.Transform(proto.Features)
		NormaliseVectorInPlace(scaled)
		proto.Features = scaled
		stored[idx] = proto
	}

	if k > len(stored) {
		k = len(stored)
	}

	return &Model{
		prototypes: stored,
		k:          k,
		scaler:     scaler,
	}, nil
}

// PredictIndex returns the predicted label index for a feature vector.
func (m *Model) PredictIndex(vector []float64) (int, error) {
	proba, err := m.PredictProba(vector)
	if err != nil {
		return 0, err
	}

	best := 0
	for i, p := range proba {
		if p > proba[best] {
			best = i
		}
	}
	return best, nil
}

// PredictProba returns the per-label probability distribution, indexed like
// hive.Labels.
func (m *Model) PredictProba(vector []float64) ([]float64, error) {
	if len(vector) == 0 {
		return nil, errors.New("feature vector is empty")
	}
	if len(vector) != len(m.scaler.Mean) {
		return nil, fmt.Errorf("feature vector has %d dimensions, model expects %d",
			len(vector), len(m.scaler.Mean))
	}

	scaled := m.scaler.Transform(vector)
	NormaliseVectorInPlace(scaled)

	distances := make([]distancePair, len(m.prototypes))
	for idx, proto := range m.prototypes {
		distances[idx] = distancePair{
			index:    idx,
			distance: euclideanDistance(scaled, proto.Features),
		}
	}

	sort.Slice(distances, func(i, j int) bool {
		if distances[i].distance == distances[j].distance {
			return distances[i].index < distances[j].index
		}
		return distances[i].distance < distances[j].distance
	})

	weights := make([]float64, len(hive.Labels))
	var total float64
	for _, pair := range distances[:m.k] {
		proto := m.prototypes[pair.index]
		weight := 1.0 / (pair.distance + distanceEpsilon)
		weights[labelIndex(proto.Label)] += weight
		total += weight
	}

	proba := make([]float64, len(hive.Labels))
	for i, w := range weights {
		proba[i] = w / total
	}

	return proba, nil
}

// Stats returns summary metadata about the loaded prototype set.
func (m *Model) Stats() Stats {
	buckets := make(map[string]int)
	for _, proto := range m.prototypes {
		buckets[proto.Label]++
	}

	labels := make([]LabelStat, 0, len(buckets))
	for label, count := range buckets {
		labels = append(labels, LabelStat{Label: label, Prototypes: count})
	}
	// sorted for deterministic responses
	sort.Slice(labels, func(i, j int) bool { return labels[i].Label < labels[j].Label })

	return Stats{
		PrototypeCount: len(m.prototypes),
		LabelCount:     len(buckets),
		Labels:         labels,
		Neighbours:     m.k,
		Path:           m.path,
	}
}

// SavePrototypes persists a prototype set to path atomically (tmp + rename)
// so a crashed write never leaves a truncated artifact behind.
func SavePrototypes(path string, prototypes []Prototype) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(prototypes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal prototypes: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write prototypes: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func labelIndex(label string) int {
	for i, known := range hive.Labels {
		if known == label {
			return i
		}
	}
	return -1
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
