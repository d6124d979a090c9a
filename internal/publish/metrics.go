// Package publish contains the monitoring backend clients and the
// publisher that batches telemetry for them.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

// MaxMetricBatch is the backend's limit on data points per put request.
const MaxMetricBatch = 20

const (
	retryAttempts  = 3
	retryBaseDelay = 250 * time.Millisecond
)

// apiKeyHeader carries the backend API key.
const apiKeyHeader = "X-Api-Key"

// MetricsClient puts metric data to the monitoring backend's metrics API.
type MetricsClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewMetricsClient creates a MetricsClient for the given backend base URL.
func NewMetricsClient(baseURL, apiKey string) *MetricsClient {
	return &MetricsClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type putMetricsRequest struct {
	MetricData []models.MetricDatum `json:"metric_data"`
}

// PutMetricData sends the data points to the backend, splitting them into
// requests of at most MaxMetricBatch points. It returns on the first failed
// chunk; already-sent chunks are not retried by the caller.
func (c *MetricsClient) PutMetricData(ctx context.Context, data []models.MetricDatum) error {
	for len(data) > 0 {
		n := min(len(data), MaxMetricBatch)
		chunk := data[:n]
		data = data[n:]

		body, err := json.Marshal(putMetricsRequest{MetricData: chunk})
		if err != nil {
			return fmt.Errorf("marshaling metric data: %w", err)
		}
		if err := c.put(ctx, c.baseURL+"/v1/metrics", body); err != nil {
			return fmt.Errorf("putting %d metric data points: %w", len(chunk), err)
		}
	}
	return nil
}

// put POSTs the body with retries. Server errors and transport errors are
// retried with exponential backoff and jitter; client errors are not.
func (c *MetricsClient) put(ctx context.Context, url string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set(apiKeyHeader, c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("backend returned status %d", resp.StatusCode)
			continue
		default:
			return fmt.Errorf("backend rejected request with status %d", resp.StatusCode)
		}
	}
	return fmt.Errorf("after %d attempts: %w", retryAttempts, lastErr)
}

// sleepBackoff waits for an exponentially growing delay with jitter, or
// until the context is cancelled.
func sleepBackoff(ctx context.Context, attempt int) error {
	delay := retryBaseDelay << (attempt - 1)
	delay += time.Duration(rand.Int63n(int64(delay)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
