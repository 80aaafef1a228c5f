package hive

// Model is a trained classifier supplied by an external collaborator. The
// classifier treats it as opaque: it only maps the predicted index through
// the label table and passes the distribution along.
type Model interface {
	// PredictIndex returns the predicted label index for a feature vector.
	PredictIndex(vector []float64) (int, error)
	// PredictProba returns the per-label probability distribution, indexed
	// like Labels.
	PredictProba(vector []float64) ([]float64, error)
}
