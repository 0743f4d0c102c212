package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/loiht2/ai-vision-portal/config"
	"github.com/loiht2/ai-vision-portal/models"
)

// maxBody caps how much of a remote response is read into memory
const maxBody = 10 << 20

// Response is a raw remote response; the status is not interpreted
type Response struct {
	StatusCode int
	Body       []byte
}

// Success reports whether the status is success-class
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Client talks to the remote inference and training-config services.
// Every call is a single attempt bounded by its own timeout.
type Client struct {
	httpClient *http.Client
	settings   *config.Settings
}

// NewClient creates a remote client. A nil httpClient uses a default one.
func NewClient(settings *config.Settings, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient, settings: settings}
}

// PostPrediction uploads an image as multipart field "file" to the inference service
func (c *Client) PostPrediction(ctx context.Context, filename, contentType string, content []byte) (*Response, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return c.do(ctx, c.settings.PredictTimeout, http.MethodPost, c.settings.ExternalPredictorAPI,
		writer.FormDataContentType(), &body)
}

// FetchTrainingConfig retrieves the remote training configuration as a JSON object.
// Non success-class statuses and bodies that are not JSON objects are errors.
func (c *Client) FetchTrainingConfig(ctx context.Context) (map[string]interface{}, error) {
	endpoint := c.settings.TrainConfigURL
	resp, err := c.do(ctx, c.settings.ConfigTimeout, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success() {
		return nil, statusError(endpoint, resp)
	}

	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse training config from %s: %w", endpoint, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("training config from %s is not a JSON object", endpoint)
	}
	return doc, nil
}

// PushTrainingConfig posts a configuration to the update-config endpoint.
// The response is returned for logging only.
func (c *Client) PushTrainingConfig(ctx context.Context, doc *models.TrainingConfigDocument) (*Response, error) {
	return c.postJSON(ctx, c.settings.ConfigTimeout, c.settings.UpdateConfigURL, doc)
}

// StartTraining posts a configuration to the start-training endpoint.
// Only 200, 201 and 202 count as accepted.
func (c *Client) StartTraining(ctx context.Context, doc *models.TrainingConfigDocument) (*Response, error) {
	endpoint := c.settings.StartTrainingURL
	resp, err := c.postJSON(ctx, c.settings.TrainingTimeout, endpoint, doc)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return resp, nil
	}
	return resp, statusError(endpoint, resp)
}

func (c *Client) postJSON(ctx context.Context, timeout time.Duration, endpoint string, payload interface{}) (*Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return c.do(ctx, timeout, http.MethodPost, endpoint, "application/json", bytes.NewReader(data))
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, endpoint, contentType string, body io.Reader) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/plain;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.TransportError{Endpoint: endpoint, Timeout: isTimeout(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &models.TransportError{Endpoint: endpoint, Timeout: isTimeout(ctx, err), Err: err}
	}

	log.Printf("%s %s -> %d (%d bytes)", method, endpoint, resp.StatusCode, len(data))
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

func statusError(endpoint string, resp *Response) error {
	return &models.RemoteStatusError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       models.Excerpt(strings.TrimSpace(string(resp.Body)), models.MaxExcerpt),
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
