package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

func newTestSpool(t *testing.T) (SpoolManager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spool.jsonl")
	return NewSpool(path), path
}

func sampleBatch(id string) models.Batch {
	return models.Batch{
		ID:   id,
		Kind: models.BatchKindMetrics,
		Time: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		Metrics: []models.MetricDatum{
			{Name: models.MetricSpeed, Value: 0.5, Unit: models.UnitMetersPerSecond},
		},
	}
}

func TestSpool_AddAndDrain(t *testing.T) {
	spool, _ := newTestSpool(t)

	for i := 0; i < 3; i++ {
		if err := spool.Add(sampleBatch(fmt.Sprintf("b%d", i))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	batches, err := spool.Drain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	// Write order is preserved.
	for i, b := range batches {
		if b.ID != fmt.Sprintf("b%d", i) {
			t.Fatalf("batch %d: expected b%d, got %s", i, i, b.ID)
		}
	}
	if batches[0].Metrics[0].Value != 0.5 {
		t.Fatalf("batch content lost: %+v", batches[0])
	}
}

func TestSpool_DrainTruncates(t *testing.T) {
	spool, _ := newTestSpool(t)
	spool.Add(sampleBatch("b1"))

	if _, err := spool.Drain(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	batches, err := spool.Drain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("expected empty spool after drain, got %v", batches)
	}
}

func TestSpool_DrainEmpty(t *testing.T) {
	spool, _ := newTestSpool(t)

	batches, err := spool.Drain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batches != nil {
		t.Fatalf("expected nil for missing spool, got %v", batches)
	}
}

func TestSpool_Len(t *testing.T) {
	spool, _ := newTestSpool(t)

	if n, _ := spool.Len(); n != 0 {
		t.Fatalf("expected empty spool, got %d", n)
	}

	spool.Add(sampleBatch("b1"))
	spool.Add(sampleBatch("b2"))

	n, err := spool.Len()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 batches, got %d", n)
	}
}

func TestSpool_SkipsMalformedLines(t *testing.T) {
	spool, path := newTestSpool(t)
	spool.Add(sampleBatch("b1"))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening spool: %v", err)
	}
	f.WriteString("{corrupted json\n")
	f.Close()

	spool.Add(sampleBatch("b2"))

	batches, err := spool.Drain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 2 || batches[0].ID != "b1" || batches[1].ID != "b2" {
		t.Fatalf("expected the two valid batches, got %v", batches)
	}
}
