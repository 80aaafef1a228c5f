package knn

// Feature scaling keeps every vector dimension contributing to the distance
// metric. The density metrics sit on a different scale than the per-bin
// amplitudes, and without standardization whichever dimension happens to be
// largest dominates the neighbour search.

import (
	"errors"
	"math"
)

// FeatureScaler standardizes features using z-score normalization. Each
// dimension is transformed to mean=0, std=1 over the prototype set.
type FeatureScaler struct {
	Mean   []float64 `json:"mean"`
	Stddev []float64 `json:"stddev"`
}

// NewFeatureScalerFromPrototypes computes scaling parameters from the stored
// prototype vectors.
func NewFeatureScalerFromPrototypes(prototypes []Prototype) (*FeatureScaler, error) {
	if len(prototypes) == 0 {
		return nil, errors.New("no prototypes provided")
	}

	featureCount := len(prototypes[0].Features)
	if featureCount == 0 {
		return nil, errors.New("prototypes have no features")
	}

	mean := make([]float64, featureCount)
	for _, proto := range prototypes {
		if len(proto.Features) != featureCount {
			return nil, errors.New("inconsistent feature dimensions")
		}
		for i, val := range proto.Features {
			mean[i] += val
		}
	}
	for i := range mean {
		mean[i] /= float64(len(prototypes))
	}

	stddev := make([]float64, featureCount)
	for _, proto := range prototypes {
		for i, val := range proto.Features {
			diff := val - mean[i]
			stddev[i] += diff * diff
		}
	}
	for i := range stddev {
		stddev[i] = math.Sqrt(stddev[i] / float64(len(prototypes)))
		// constant dimensions would divide by zero
		if stddev[i] < 1e-10 {
			stddev[i] = 1.0
		}
	}

	return &FeatureScaler{
		Mean:   mean,
		Stddev: stddev,
	}, nil
}

// Transform applies z-score standardization to a feature vector.
func (fs *FeatureScaler) Transform(features []float64) []float64 {
	if len(features) != len(fs.Mean) {
		return features // dimensions don't match, leave unchanged
	}

	scaled := make([]float64, len(features))
	for i, val := range features {
		scaled[i] = (val - fs.Mean[i]) / fs.Stddev[i]
	}

	return scaled
}

// NormaliseVectorInPlace scales a vector to unit length. Zero vectors are
// left untouched.
func NormaliseVectorInPlace(values []float64) {
	var sum float64
	for _, v := range values {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range values {
		values[i] /= norm
	}
}
