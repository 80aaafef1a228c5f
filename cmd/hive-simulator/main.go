package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hive-monitor/models"
)

const (
	behaviorNormal   = "normal"
	behaviorSwarming = "swarming"
	behaviorDistress = "distress"
)

// Most readings are quiet hives; swarming and distress are rare events.
var behaviorWeights = []struct {
	behavior string
	weight   float64
}{
	{behaviorNormal, 0.80},
	{behaviorSwarming, 0.15},
	{behaviorDistress, 0.05},
}

func main() {
	devices := flag.Int("devices", 3, "Number of hive devices to simulate")
	count := flag.Int("count", 10, "Number of samples to generate per device (0 for unlimited)")
	interval := flag.Duration("interval", 2*time.Second, "Delay between sample batches")
	outDir := flag.String("out", "simulation_output", "Directory for generated payload files")
	endpoint := flag.String("url", "", "Optional ingest endpoint; when set, payloads are POSTed instead of written to -out")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	deviceIDs := make([]string, 0, *devices)
	for i := 0; i < *devices; i++ {
		deviceIDs = append(deviceIDs, fmt.Sprintf("HIVE-%04d", 1000+rng.Intn(9000)))
	}

	fmt.Printf("Simulating %d hive device(s)\n", len(deviceIDs))
	for _, id := range deviceIDs {
		fmt.Printf("  %s\n", id)
	}
	if *endpoint != "" {
		fmt.Printf("Posting payloads to %s\n\n", *endpoint)
	} else {
		if err := os.MkdirAll(*outDir, 0755); err != nil {
			log.Fatalf("failed to create output directory: %v", err)
		}
		fmt.Printf("Writing payloads to %s\n\n", *outDir)
	}

	generated := 0
	for batch := 0; *count == 0 || batch < *count; batch++ {
		for _, deviceID := range deviceIDs {
			payload := generatePayload(rng, deviceID)

			var location string
			var err error
			if *endpoint != "" {
				location, err = postPayload(*endpoint, payload)
			} else {
				location, err = writePayload(*outDir, payload)
			}
			if err != nil {
				log.Printf("sample for %s failed: %v", deviceID, err)
				continue
			}

			fmt.Printf("→ %s: %s -> %s\n", deviceID, payload.TrueBehavior, location)
			generated++
		}

		if (*count == 0 || batch < *count-1) && *interval > 0 {
			time.Sleep(*interval)
		}
	}

	fmt.Printf("\nSimulation complete. Generated %d sample(s).\n", generated)
}

func pickBehavior(rng *rand.Rand) string {
	roll := rng.Float64()
	for _, entry := range behaviorWeights {
		if roll < entry.weight {
			return entry.behavior
		}
		roll -= entry.weight
	}
	return behaviorNormal
}

// generatePayload builds a reading whose spectrum and density metrics lean
// the way the chosen behavior sounds: swarming pushes energy into the high
// bins and drives density up, distress concentrates energy below 300Hz.
func generatePayload(rng *rand.Rand, deviceID string) *models.SensorPayload {
	behavior := pickBehavior(rng)

	frequencies := make(map[string]float64)
	for hz := 120; hz <= 570; hz += 30 {
		level := 3.0 + rng.Float64()*4.0

		switch behavior {
		case behaviorSwarming:
			if hz > 300 {
				level *= 1.4 + rng.Float64()*0.6
			}
		case behaviorDistress:
			if hz < 300 {
				level *= 1.8 + rng.Float64()*0.7
			} else {
				level *= 0.5 + rng.Float64()*0.2
			}
		}
		frequencies[strconv.Itoa(hz)] = round2(level)
	}

	density := 8.0 + rng.Float64()*8.0
	variation := 10.0 + rng.Float64()*15.0
	switch behavior {
	case behaviorSwarming:
		density *= 1.8 + rng.Float64()*0.7
		variation *= 2.2 + rng.Float64()*0.8
	case behaviorDistress:
		variation *= 1.4 + rng.Float64()*0.4
	}

	battery := round2(0.3 + rng.Float64()*0.7)
	temperature := round2(20 + rng.Float64()*20)
	humidity := round2(0.3 + rng.Float64()*0.6)

	return &models.SensorPayload{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Audio: &models.AudioFeatures{
			Frequencies:       frequencies,
			AudioDensity:      round2(density),
			AudioDensityRatio: round2(density / 40.0),
			DensityVariation:  round2(variation),
		},
		BatteryLevel: &battery,
		Temperature:  &temperature,
		Humidity:     &humidity,
		TrueBehavior: behavior,
	}
}

func writePayload(dir string, payload *models.SensorPayload) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	stamp := time.Now().Format("20060102_150405.000000")
	name := fmt.Sprintf("%s_%s.json", payload.DeviceID, stamp)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write payload: %w", err)
	}
	return path, nil
}

func postPayload(endpoint string, payload *models.SensorPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("post payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return endpoint, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
