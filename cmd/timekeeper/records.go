package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/tolelom/timekeeper/poh"
)

// loadRecords reads a record stream previously written by saveRecords.
func loadRecords(path string) ([]poh.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []poh.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

// saveRecords persists records to path as indented JSON.
func saveRecords(path string, records []poh.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
