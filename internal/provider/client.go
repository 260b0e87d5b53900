// Package provider is the HTTP client for the external face-embedding
// service. The service receives an image and returns zero or more
// unit-norm embeddings, one per detected face.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:8000"

	// maxResponseSize bounds the embedding service response body.
	maxResponseSize = 16 << 20
)

// Client talks to the face-embedding service.
type Client struct {
	baseURL      string
	maxImageSize int // longest image side sent to the service, 0 disables downscaling
	httpClient   *http.Client
}

// New creates a client. maxImageSize of 0 sends images as-is.
func New(baseURL string, maxImageSize int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSize: maxImageSize,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

// detectResponse is the service's wire format.
type detectResponse struct {
	Dim   int    `json:"dim"`
	Model string `json:"model"`
	Faces []struct {
		Embedding []float32 `json:"embedding"`
		DetScore  float64   `json:"det_score"`
	} `json:"faces"`
}

// DetectEmbeddings posts the image and returns one embedding per
// detected face. An empty result means no face was found; that is a
// valid response, not an error.
func (c *Client) DetectEmbeddings(ctx context.Context, image []byte) ([][]float32, error) {
	if c.maxImageSize > 0 {
		resized, err := Downscale(image, c.maxImageSize)
		if err != nil {
			// Send the original rather than fail the whole call.
			log.Printf("provider: downscale failed, sending original image: %v", err)
		} else {
			image = resized
		}
	}

	body, contentType, err := buildMultipart(image)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", body)
	if err != nil {
		return nil, fmt.Errorf("creating detect request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed detectResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %w", err)
	}

	embeddings := make([][]float32, 0, len(parsed.Faces))
	for _, f := range parsed.Faces {
		if len(f.Embedding) == 0 {
			continue
		}
		if parsed.Dim > 0 && len(f.Embedding) != parsed.Dim {
			return nil, fmt.Errorf("embedding length %d does not match declared dim %d", len(f.Embedding), parsed.Dim)
		}
		embeddings = append(embeddings, f.Embedding)
	}
	return embeddings, nil
}

func buildMultipart(image []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("writing image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
