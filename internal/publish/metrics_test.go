package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldrover/rovermon/pkg/models"
)

func sampleData(n int) []models.MetricDatum {
	data := make([]models.MetricDatum, n)
	for i := range data {
		data[i] = models.MetricDatum{Name: models.MetricSpeed, Value: float64(i), Unit: models.UnitMetersPerSecond}
	}
	return data
}

func TestPutMetricData(t *testing.T) {
	var requests []putMetricsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/metrics" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing API key header")
		}
		var req putMetricsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		requests = append(requests, req)
	}))
	defer server.Close()

	c := NewMetricsClient(server.URL, "secret")
	if err := c.PutMetricData(context.Background(), sampleData(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(requests) != 1 || len(requests[0].MetricData) != 5 {
		t.Fatalf("expected one request with 5 points, got %v", requests)
	}
}

func TestPutMetricData_ChunksAtBatchLimit(t *testing.T) {
	var sizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req putMetricsRequest
		json.NewDecoder(r.Body).Decode(&req)
		sizes = append(sizes, len(req.MetricData))
	}))
	defer server.Close()

	c := NewMetricsClient(server.URL, "")
	if err := c.PutMetricData(context.Background(), sampleData(45)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{20, 20, 5}
	if len(sizes) != len(want) {
		t.Fatalf("expected chunks %v, got %v", want, sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("chunk %d: expected %d points, got %d", i, want[i], sizes[i])
		}
	}
}

func TestPutMetricData_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	c := NewMetricsClient(server.URL, "")
	if err := c.PutMetricData(context.Background(), sampleData(1)); err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestPutMetricData_GivesUpAfterRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewMetricsClient(server.URL, "")
	if err := c.PutMetricData(context.Background(), sampleData(1)); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != retryAttempts {
		t.Fatalf("expected %d attempts, got %d", retryAttempts, attempts)
	}
}

func TestPutMetricData_NoRetryOnClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewMetricsClient(server.URL, "")
	if err := c.PutMetricData(context.Background(), sampleData(1)); err == nil {
		t.Fatal("expected error for rejected request")
	}
	if attempts != 1 {
		t.Fatalf("expected no retry on 4xx, got %d attempts", attempts)
	}
}

func TestPutMetricData_Empty(t *testing.T) {
	c := NewMetricsClient("http://127.0.0.1:0", "")
	if err := c.PutMetricData(context.Background(), nil); err != nil {
		t.Fatalf("expected no requests for empty data, got %v", err)
	}
}
