package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ColumnMeta describes one column of a table in the target database.
type ColumnMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SchemaMetadata maps table names to their columns.
type SchemaMetadata map[string][]ColumnMeta

// Fingerprint returns a stable hash of the schema.
func (s SchemaMetadata) Fingerprint() string {
	// encoding/json sorts map keys, so the encoding is deterministic.
	raw, _ := json.Marshal(s)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}
