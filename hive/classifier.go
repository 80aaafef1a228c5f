package hive

import (
	"fmt"
	"math"
)

// Labels is the fixed classification target table. Index positions are part
// of the model contract: artifacts and remote services emit indexes into
// this table, so the order never changes.
var Labels = []string{"normal", "swarming", "distress"}

// Label indexes.
const (
	LabelNormal = iota
	LabelSwarming
	LabelDistress
)

// Fallback rule thresholds, kept identical to the pipeline this replaces so
// records remain comparable across deployments.
const (
	fallbackVariationThreshold = 35.0
	fallbackDensityThreshold   = 20.0
	fallbackLowHighRatio       = 1.5
	fallbackConfidence         = 0.85
)

// fallbackRemainder is split between the two non-predicted labels in
// ascending index order. Deliberately crude placeholder, not calibrated.
var fallbackRemainder = []float64{0.10, 0.05}

// ClassificationResult is the outcome of classifying one feature vector.
type ClassificationResult struct {
	Prediction    string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// BehaviorClassifier maps feature vectors to hive behavior labels. With a
// trained model handle it delegates entirely; without one it applies a
// deterministic rule set. Stateless between calls.
type BehaviorClassifier struct {
	model Model
}

// NewBehaviorClassifier returns a classifier backed by the given model.
// A nil model selects the rule-based fallback.
func NewBehaviorClassifier(model Model) *BehaviorClassifier {
	return &BehaviorClassifier{model: model}
}

// UsingModel reports whether a trained model handle is attached.
func (c *BehaviorClassifier) UsingModel() bool {
	return c.model != nil
}

// Classify produces a labeled result for a feature vector. Vectors of
// length <= 1 are rejected with InvalidInputError.
func (c *BehaviorClassifier) Classify(vector []float64) (ClassificationResult, error) {
	if len(vector) <= 1 {
		return ClassificationResult{}, &InvalidInputError{Length: len(vector)}
	}

	var (
		index         int
		probabilities []float64
		err           error
	)

	if c.model != nil {
		index, err = c.model.PredictIndex(vector)
		if err != nil {
			return ClassificationResult{}, fmt.Errorf("model predict failed: %w", err)
		}
		probabilities, err = c.model.PredictProba(vector)
		if err != nil {
			return ClassificationResult{}, fmt.Errorf("model predict_proba failed: %w", err)
		}
		if index < 0 || index >= len(Labels) {
			return ClassificationResult{}, fmt.Errorf("model returned label index %d outside table of %d", index, len(Labels))
		}
		if len(probabilities) != len(Labels) {
			return ClassificationResult{}, fmt.Errorf("model returned %d probabilities, expected %d", len(probabilities), len(Labels))
		}
	} else {
		index, probabilities = classifyByRules(vector)
	}

	result := ClassificationResult{
		Prediction:    Labels[index],
		Confidence:    probabilities[index],
		Probabilities: make(map[string]float64, len(Labels)),
	}
	for i, label := range Labels {
		result.Probabilities[label] = probabilities[i]
	}

	return result, nil
}

// classifyByRules is the placeholder heuristic used when no trained model is
// available. The vector is split into low/high halves; the density metric
// sits at index len-3 and the variation metric is the last element.
func classifyByRules(vector []float64) (int, []float64) {
	half := len(vector) / 2
	low := vector[:half]
	high := vector[half:]

	var density float64
	if len(vector) > 3 {
		density = vector[len(vector)-3]
	}
	variation := vector[len(vector)-1]

	var index int
	switch {
	case variation > fallbackVariationThreshold || density > fallbackDensityThreshold:
		index = LabelSwarming
	case mean(low) > mean(high)*fallbackLowHighRatio:
		index = LabelDistress
	default:
		index = LabelNormal
	}

	probabilities := make([]float64, len(Labels))
	probabilities[index] = fallbackConfidence
	slot := 0
	for i := range probabilities {
		if i == index {
			continue
		}
		probabilities[i] = fallbackRemainder[slot]
		slot++
	}

	return index, probabilities
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
