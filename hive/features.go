package hive

import (
	"sort"
	"strconv"
)

// DensityMetrics are the three scalar summaries of the amplitude
// distribution appended to every feature vector, in this fixed order.
type DensityMetrics struct {
	AudioDensity      float64
	AudioDensityRatio float64
	DensityVariation  float64
}

// BuildFeatureVector converts a frequency-bin amplitude map plus the density
// metrics into one fixed-order vector: amplitudes sorted by ascending numeric
// bin value, then [audio_density, audio_density_ratio, density_variation].
// Consumers depend on the ordering being identical between training and
// inference, so the map's iteration order never leaks into the result.
func BuildFeatureVector(frequencies map[string]float64, metrics DensityMetrics) ([]float64, error) {
	type bin struct {
		hz        float64
		amplitude float64
	}

	bins := make([]bin, 0, len(frequencies))
	for key, amplitude := range frequencies {
		hz, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, &FormatError{Key: key, Err: err}
		}
		bins = append(bins, bin{hz: hz, amplitude: amplitude})
	}

	sort.Slice(bins, func(i, j int) bool { return bins[i].hz < bins[j].hz })

	vector := make([]float64, 0, len(bins)+3)
	for _, b := range bins {
		vector = append(vector, b.amplitude)
	}
	vector = append(vector, metrics.AudioDensity, metrics.AudioDensityRatio, metrics.DensityVariation)

	return vector, nil
}
