package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/chefos/chefos-backend/internal/docprocessing/domain"
)

// JPEG and PNG magic bytes for image detection
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
)

// OCRClient sends document images to the external text recognition service
type OCRClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOCRClient creates a client for the OCR service at baseURL
func NewOCRClient(baseURL string, timeout time.Duration) *OCRClient {
	if timeout <= 0 {
		timeout = 30 * time.Second // recognition of a full page can take a while
	}
	return &OCRClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Recognize returns the raw text of the image. The image is not retained.
func (c *OCRClient) Recognize(ctx context.Context, imageData []byte, docType domain.DocumentType) (string, error) {
	if !isImageData(imageData) {
		return "", fmt.Errorf("ocr: data is not a JPEG or PNG image")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "document.bin")
	if err != nil {
		return "", fmt.Errorf("ocr: create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return "", fmt.Errorf("ocr: write image data: %w", err)
	}
	if err := writer.WriteField("document_type", string(docType)); err != nil {
		return "", fmt.Errorf("ocr: write document_type field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("ocr: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/ocr", body)
	if err != nil {
		return "", fmt.Errorf("ocr: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ocr: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr: service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out ocrResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("ocr: parse response: %w", err)
	}
	return out.Text, nil
}

// isImageData checks for JPEG or PNG magic bytes at the start of the data.
func isImageData(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return bytes.HasPrefix(data, jpegMagic) || bytes.HasPrefix(data, pngMagic)
}

type ocrResponse struct {
	Text string `json:"text"`
}
