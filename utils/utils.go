package utils

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
)

// GetEnv returns the value of an environment variable or a fallback default.
func GetEnv(key string, fallback ...string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// CreateFolder creates a directory (and parents) if it doesn't already exist.
func CreateFolder(folderPath string) error {
	if _, err := os.Stat(folderPath); os.IsNotExist(err) {
		if err := os.MkdirAll(folderPath, 0755); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", folderPath, err)
		}
	}
	return nil
}

// GenerateUniqueID returns a random 32-bit identifier.
func GenerateUniqueID() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand should never fail on supported platforms
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return binary.BigEndian.Uint32(buf[:])
}
