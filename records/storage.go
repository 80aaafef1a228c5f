package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hive-monitor/models"
	"hive-monitor/utils"
)

// FileStore is an append-only JSON file store for classification records.
// It needs no infrastructure, which makes it the default backend for local
// runs and demos.
type FileStore struct {
	mu       sync.RWMutex
	filePath string
}

// NewFileStore creates a store backed by the given JSON file.
func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// loadInternal loads all records from the JSON file (without lock)
func (s *FileStore) loadInternal() ([]models.ClassificationRecord, error) {
	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		return []models.ClassificationRecord{}, nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading records file: %v", err)
	}

	if len(data) == 0 {
		return []models.ClassificationRecord{}, nil
	}

	var records []models.ClassificationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error unmarshaling records: %v", err)
	}

	return records, nil
}

// Save appends a new classification record to the JSON file.
func (s *FileStore) Save(record *models.ClassificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadInternal()
	if err != nil {
		return err
	}

	if record.ID == 0 {
		record.ID = time.Now().UnixNano()
	}
	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now().UTC()
	}

	records = append(records, *record)

	dir := filepath.Dir(s.filePath)
	if dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("error creating directory: %v", err)
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling records: %v", err)
	}

	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("error writing records file: %v", err)
	}

	return nil
}

// List returns all stored records, newest first.
func (s *FileStore) List() ([]models.ClassificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.loadInternal()
	if err != nil {
		return nil, err
	}

	// stored append-order is oldest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, nil
}

// ListByDevice returns records for a single device, newest first.
func (s *FileStore) ListByDevice(deviceID string) ([]models.ClassificationRecord, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	filtered := make([]models.ClassificationRecord, 0, len(all))
	for _, record := range all {
		if record.DeviceID == deviceID {
			filtered = append(filtered, record)
		}
	}

	return filtered, nil
}

// Close is a no-op; the file store holds no open handles between calls.
func (s *FileStore) Close() error {
	return nil
}
