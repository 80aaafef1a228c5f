package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"hive-monitor/models"
	"hive-monitor/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	// Create the directory if it doesn't exist (cross-platform)
	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %s", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000" // 5 seconds
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %s", err)
	}

	err = createTables(db)
	if err != nil {
		return nil, fmt.Errorf("error creating tables: %s", err)
	}

	return &SQLiteClient{db: db}, nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createClassificationsTable := `
    CREATE TABLE IF NOT EXISTS hive_classifications (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        device_id TEXT NOT NULL,
        timestamp TEXT NOT NULL,
        file_name TEXT,
        message_id TEXT,
        prediction TEXT NOT NULL,
        confidence REAL NOT NULL DEFAULT 0,
        probabilities TEXT NOT NULL,
        processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        battery_level REAL,
        temperature REAL,
        humidity REAL
    );
    CREATE INDEX IF NOT EXISTS idx_classifications_device ON hive_classifications(device_id);
    CREATE INDEX IF NOT EXISTS idx_classifications_processed ON hive_classifications(processed_at);
    `

	_, err := db.Exec(createClassificationsTable)
	if err != nil {
		return fmt.Errorf("error creating hive_classifications table: %s", err)
	}

	return nil
}

func (c *SQLiteClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Save stores a classification record and fills in its assigned row ID.
func (c *SQLiteClient) Save(record *models.ClassificationRecord) error {
	probabilitiesJSON, err := json.Marshal(record.Probabilities)
	if err != nil {
		return fmt.Errorf("error marshaling probabilities: %s", err)
	}

	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now().UTC()
	}

	result, err := c.db.Exec(`
		INSERT INTO hive_classifications (
			device_id, timestamp, file_name, message_id, prediction,
			confidence, probabilities, processed_at, battery_level,
			temperature, humidity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.DeviceID,
		record.Timestamp,
		nullableString(record.FileName),
		nullableString(record.MessageID),
		record.Prediction,
		record.Confidence,
		string(probabilitiesJSON),
		record.ProcessedAt,
		record.BatteryLevel,
		record.Temperature,
		record.Humidity,
	)
	if err != nil {
		return fmt.Errorf("error storing classification: %s", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}

	return nil
}

// List retrieves all classification records, newest first.
func (c *SQLiteClient) List() ([]models.ClassificationRecord, error) {
	return c.query(`
		SELECT id, device_id, timestamp, file_name, message_id, prediction,
		       confidence, probabilities, processed_at, battery_level,
		       temperature, humidity
		FROM hive_classifications
		ORDER BY processed_at DESC, id DESC
	`)
}

// ListByDevice retrieves the records for one device, newest first.
func (c *SQLiteClient) ListByDevice(deviceID string) ([]models.ClassificationRecord, error) {
	return c.query(`
		SELECT id, device_id, timestamp, file_name, message_id, prediction,
		       confidence, probabilities, processed_at, battery_level,
		       temperature, humidity
		FROM hive_classifications
		WHERE device_id = ?
		ORDER BY processed_at DESC, id DESC
	`, deviceID)
}

func (c *SQLiteClient) query(statement string, args ...interface{}) ([]models.ClassificationRecord, error) {
	rows, err := c.db.Query(statement, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying classifications: %s", err)
	}
	defer rows.Close()

	var classificationRecords []models.ClassificationRecord
	for rows.Next() {
		var r models.ClassificationRecord
		var fileName, messageID *string
		var probabilitiesJSON string

		err := rows.Scan(
			&r.ID,
			&r.DeviceID,
			&r.Timestamp,
			&fileName,
			&messageID,
			&r.Prediction,
			&r.Confidence,
			&probabilitiesJSON,
			&r.ProcessedAt,
			&r.BatteryLevel,
			&r.Temperature,
			&r.Humidity,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning classification: %s", err)
		}

		if fileName != nil {
			r.FileName = *fileName
		}
		if messageID != nil {
			r.MessageID = *messageID
		}
		if err := json.Unmarshal([]byte(probabilitiesJSON), &r.Probabilities); err != nil {
			return nil, fmt.Errorf("error unmarshaling probabilities: %s", err)
		}

		classificationRecords = append(classificationRecords, r)
	}

	return classificationRecords, nil
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
