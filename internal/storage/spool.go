package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fieldrover/rovermon/pkg/models"
)

// SpoolManager persists batches that could not be delivered to the backend.
type SpoolManager interface {
	Add(batch models.Batch) error
	// Drain returns all spooled batches in write order and truncates the
	// spool. The caller re-adds any batch it fails to deliver.
	Drain() ([]models.Batch, error)
	// Len reports the number of spooled batches.
	Len() (int, error)
}

// jsonlSpool implements SpoolManager with an append-only JSONL file.
type jsonlSpool struct {
	path string
	mu   sync.Mutex
}

// NewSpool creates a SpoolManager backed by a JSONL file at the given path.
func NewSpool(path string) SpoolManager {
	return &jsonlSpool{path: path}
}

func (s *jsonlSpool) Add(batch models.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening spool: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshaling batch: %w", err)
	}
	data = append(data, '\n')

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing batch to spool: %w", err)
	}
	return nil
}

func (s *jsonlSpool) Drain() ([]models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, nil
	}

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("truncating spool: %w", err)
	}
	return batches, nil
}

func (s *jsonlSpool) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batches, err := s.readAll()
	if err != nil {
		return 0, err
	}
	return len(batches), nil
}

func (s *jsonlSpool) readAll() ([]models.Batch, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening spool for reading: %w", err)
	}
	defer f.Close()

	var batches []models.Batch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var batch models.Batch
		if err := json.Unmarshal(line, &batch); err != nil {
			continue // skip malformed lines
		}
		batches = append(batches, batch)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning spool: %w", err)
	}
	return batches, nil
}
