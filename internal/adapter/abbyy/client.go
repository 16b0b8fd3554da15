package abbyy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultBaseURL = "https://cloud-westus2.abbyy.com/v1-preview"

// Field is one extracted value as the engine reports it. Value is kept
// raw so the engine's own typing survives the round trip.
type Field struct {
	Value      json.RawMessage `json:"value"`
	Confidence *float64        `json:"confidence,omitempty"`
}

// StatusResponse is one status-query result: the engine's declared
// status, its field map, and the untouched response body.
type StatusResponse struct {
	Status string
	Fields map[string]Field
	Raw    json.RawMessage
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Submit uploads one document for extraction and returns the engine's
// document handle. An accepted upload without a handle is an error.
func (c *Client) Submit(ctx context.Context, name, contentType string, data []byte, modelType string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, modelType)
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		detail, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("engine api error: %d - %s", resp.StatusCode, string(detail))
	}

	var result struct {
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Documents) == 0 || result.Documents[0].ID == "" {
		return "", fmt.Errorf("no document id in engine response")
	}

	return result.Documents[0].ID, nil
}

// Fields queries the extraction status of a submitted document. The
// engine nests the result under a model-specific key (e.g. "invoice"),
// so the model object is located by its "meta" member.
func (c *Client) Fields(ctx context.Context, modelType, documentID string) (*StatusResponse, error) {
	url := fmt.Sprintf("%s/models/%s/%s", c.baseURL, modelType, documentID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("engine api error: %d - %s", resp.StatusCode, string(raw))
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("malformed status response: %w", err)
	}

	for _, section := range envelope {
		var doc struct {
			Meta *struct {
				Status string `json:"status"`
			} `json:"meta"`
			Fields map[string]Field `json:"fields"`
		}
		if err := json.Unmarshal(section, &doc); err != nil {
			continue
		}
		if doc.Meta == nil {
			continue
		}
		return &StatusResponse{
			Status: doc.Meta.Status,
			Fields: doc.Fields,
			Raw:    json.RawMessage(raw),
		}, nil
	}

	return nil, fmt.Errorf("no document status in engine response")
}
