// Package embedding talks to the face-embedding service (a DeepFace HTTP
// server). It turns a captured image into a fixed-length float vector.
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/securevote-api/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client calls POST {baseURL}/represent.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

func NewClient(baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type representRequest struct {
	Img              string `json:"img"`
	ModelName        string `json:"model_name"`
	EnforceDetection bool   `json:"enforce_detection"`
}

type representResponse struct {
	Results []struct {
		Embedding      []float64 `json:"embedding"`
		FaceConfidence float64   `json:"face_confidence"`
	} `json:"results"`
	Error string `json:"error"`
}

// Extract returns the embedding of the first detected face. A capture without a
// detectable face yields ErrNoFaceDetected.
func (c *Client) Extract(ctx context.Context, image []byte) ([]float64, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image: %w", domain.ErrNoFaceDetected)
	}
	body, err := json.Marshal(representRequest{
		Img:              dataURI(image),
		ModelName:        c.model,
		EnforceDetection: true,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/represent", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	var out representResponse
	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode embedding response: %w", err)
		}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		_ = json.Unmarshal(raw, &out)
		if detectionFailed(out.Error) {
			return nil, fmt.Errorf("embedding service: %w", domain.ErrNoFaceDetected)
		}
		return nil, fmt.Errorf("embedding service rejected request (%d): %s", resp.StatusCode, out.Error)
	default:
		return nil, fmt.Errorf("embedding service returned %d", resp.StatusCode)
	}
	// a well-formed reply with zero faces
	if len(out.Results) == 0 || len(out.Results[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding in response: %w", domain.ErrNoFaceDetected)
	}
	return out.Results[0].Embedding, nil
}

// detectionFailed reports whether a provider error message means the detector
// found no face, e.g. DeepFace's "Face could not be detected in numpy array".
func detectionFailed(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "face could not be detected") || strings.Contains(msg, "no face")
}

func dataURI(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}
