package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fieldrover/rovermon/pkg/models"
)

// MaxLogBatch is the backend's limit on log events per put request.
const MaxLogBatch = 100

// LogsClient puts log-event batches to the monitoring backend's logs API.
// The backend orders puts within a stream with a sequence token: each
// response carries the token to send with the next put.
type LogsClient struct {
	baseURL string
	apiKey  string
	stream  string
	client  *http.Client

	mu    sync.Mutex
	token string
}

// NewLogsClient creates a LogsClient writing to the named log stream.
func NewLogsClient(baseURL, apiKey, stream string) *LogsClient {
	return &LogsClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		stream:  stream,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type putLogsRequest struct {
	Stream        string             `json:"stream"`
	SequenceToken string             `json:"sequence_token,omitempty"`
	Events        []models.LogRecord `json:"events"`
}

type putLogsResponse struct {
	NextSequenceToken string `json:"next_sequence_token"`
	// ExpectedSequenceToken is set on a 409 conflict so the client can
	// resynchronize.
	ExpectedSequenceToken string `json:"expected_sequence_token,omitempty"`
}

// PutLogEvents sends the records to the backend in order, splitting them
// into requests of at most MaxLogBatch events.
func (c *LogsClient) PutLogEvents(ctx context.Context, records []models.LogRecord) error {
	for len(records) > 0 {
		n := min(len(records), MaxLogBatch)
		chunk := records[:n]
		records = records[n:]
		if err := c.putChunk(ctx, chunk); err != nil {
			return fmt.Errorf("putting %d log events: %w", len(chunk), err)
		}
	}
	return nil
}

func (c *LogsClient) putChunk(ctx context.Context, records []models.LogRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.send(ctx, records, c.token)
	if err != nil {
		return err
	}

	// On a token conflict the backend tells us the token it expected;
	// resync once and retry.
	if resp.ExpectedSequenceToken != "" {
		resp, err = c.send(ctx, records, resp.ExpectedSequenceToken)
		if err != nil {
			return err
		}
		if resp.ExpectedSequenceToken != "" {
			return fmt.Errorf("sequence token conflict persists after resync")
		}
	}

	c.token = resp.NextSequenceToken
	return nil
}

func (c *LogsClient) send(ctx context.Context, records []models.LogRecord, token string) (*putLogsResponse, error) {
	body, err := json.Marshal(putLogsRequest{
		Stream:        c.stream,
		SequenceToken: token,
		Events:        records,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling log events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/logs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting log events: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch httpResp.StatusCode {
	case http.StatusOK, http.StatusConflict:
	default:
		return nil, fmt.Errorf("backend returned status %d", httpResp.StatusCode)
	}

	var decoded putLogsResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return &decoded, nil
}
