package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"hive-monitor/hive"
	"hive-monitor/knn"
	"hive-monitor/models"
)

// Builds the prototype artifact from a directory of labelled payload files,
// typically simulator output where true_behavior carries the ground truth.
func main() {
	inputDir := flag.String("dir", "simulation_output", "Directory containing labelled payload JSON files")
	outputFile := flag.String("out", filepath.Join("model", "hive_prototypes.json"), "Output artifact path")
	k := flag.Int("k", 5, "Neighbour count to validate the artifact with")
	flag.Parse()

	files, err := collectPayloadFiles(*inputDir)
	if err != nil {
		log.Fatalf("failed to list directory: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no payload files found in %s", *inputDir)
	}

	log.Printf("Found %d payload files in %s", len(files), *inputDir)
	log.Println("Building prototypes...")

	var prototypes []knn.Prototype
	skipped := 0
	for _, path := range files {
		proto, err := buildPrototype(path)
		if err != nil {
			log.Printf("  SKIP %s: %v", filepath.Base(path), err)
			skipped++
			continue
		}

		prototypes = append(prototypes, proto)
		log.Printf("  ✓ %s (label: %s)", proto.ID, proto.Label)
	}

	if len(prototypes) == 0 {
		log.Fatalf("no prototypes were created (%d skipped)", skipped)
	}

	// Fail now rather than at serve time if the set is unusable.
	model, err := knn.NewModelFromPrototypes(prototypes, *k)
	if err != nil {
		log.Fatalf("prototype set is not a valid model: %v", err)
	}

	if err := knn.SavePrototypes(*outputFile, prototypes); err != nil {
		log.Fatalf("failed to write artifact: %v", err)
	}

	stats := model.Stats()
	log.Printf("\n✓ Wrote %d prototypes to %s", len(prototypes), *outputFile)
	log.Println("\nLabel distribution:")
	for _, stat := range stats.Labels {
		log.Printf("  %s: %d", stat.Label, stat.Prototypes)
	}
	if skipped > 0 {
		log.Printf("\n%d file(s) skipped", skipped)
	}
}

func buildPrototype(path string) (knn.Prototype, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return knn.Prototype{}, fmt.Errorf("read payload: %w", err)
	}

	var payload models.SensorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return knn.Prototype{}, fmt.Errorf("parse payload: %w", err)
	}
	if payload.TrueBehavior == "" {
		return knn.Prototype{}, fmt.Errorf("payload carries no true_behavior label")
	}
	if payload.Audio == nil {
		return knn.Prototype{}, fmt.Errorf("payload carries no audio block")
	}

	vector, err := hive.BuildFeatureVector(payload.Audio.Frequencies, hive.DensityMetrics{
		AudioDensity:      payload.Audio.AudioDensity,
		AudioDensityRatio: payload.Audio.AudioDensityRatio,
		DensityVariation:  payload.Audio.DensityVariation,
	})
	if err != nil {
		return knn.Prototype{}, fmt.Errorf("build feature vector: %w", err)
	}

	base := filepath.Base(path)
	return knn.Prototype{
		ID:       base[:len(base)-len(filepath.Ext(base))],
		Label:    payload.TrueBehavior,
		Source:   base,
		Features: vector,
	}, nil
}

func collectPayloadFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}
