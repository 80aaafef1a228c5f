package inference

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeService(t *testing.T, index int, proba []float64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if len(req.Features) == 0 {
			http.Error(w, "empty features", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(predictResponse{
			LabelIndex:    index,
			Probabilities: proba,
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	server := newFakeService(t, 0, []float64{0.9, 0.06, 0.04})
	client := NewClient(server.URL)

	if err := client.HealthCheck(); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestPredictRoundTrip(t *testing.T) {
	t.Parallel()

	server := newFakeService(t, 1, []float64{0.1, 0.75, 0.15})
	client := NewClient(server.URL)

	index, err := client.PredictIndex([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("PredictIndex returned error: %v", err)
	}
	if index != 1 {
		t.Fatalf("expected index 1, got %d", index)
	}

	proba, err := client.PredictProba([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("PredictProba returned error: %v", err)
	}
	if len(proba) != 3 || proba[1] != 0.75 {
		t.Fatalf("unexpected distribution: %v", proba)
	}
}

func TestPredictSurfacesServiceErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL)
	if _, err := client.PredictIndex([]float64{1, 2}); err == nil {
		t.Fatal("expected error from failing service")
	}
}
