package analyzer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIClient implements VendorClient against the OpenAI chat completions
// API, transmitting images as base64 data URIs.
type OpenAIClient struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient builds a client from the OPENAI_* configuration.
func NewOpenAIClient(endpoint, apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type openaiContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type openaiRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string              `json:"role"`
		Content []openaiContentPart `json:"content"`
	} `json:"messages"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements VendorClient.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt string, images []Image, itemJSON string) (string, error) {
	content := make([]openaiContentPart, 0, len(images)+1)
	for _, img := range images {
		dataURI := "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.PNGBytes)
		content = append(content, openaiContentPart{
			Type: "image_url",
			ImageURL: &struct {
				URL string `json:"url"`
			}{URL: dataURI},
		})
	}
	content = append(content, openaiContentPart{Type: "text", Text: itemJSON})

	var reqBody openaiRequest
	reqBody.Model = c.model
	reqBody.Messages = []struct {
		Role    string              `json:"role"`
		Content []openaiContentPart `json:"content"`
	}{
		{Role: "system", Content: []openaiContentPart{{Type: "text", Text: systemPrompt}}},
		{Role: "user", Content: content},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read openai response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &VendorHTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var or openaiResponse
	if err := json.Unmarshal(respBody, &or); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if or.Error != nil {
		return "", fmt.Errorf("openai error: %s", or.Error.Message)
	}
	if len(or.Choices) == 0 {
		return "", fmt.Errorf("openai response: empty choices")
	}
	return or.Choices[0].Message.Content, nil
}
