// Package embedder implements the Embedder Client (C3): a single multipart
// HTTP POST per marketplace batch of relevant items, alternating text and
// image parts in order.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mhbka/itemtracker/pkg/resilience"
)

// Input is one item's embedder payload: its generated description and the
// PNG bytes of its chosen thumbnail.
type Input struct {
	Description string
	ImageBytes  []byte
}

// Output is the zipped per-item embedding pair.
type Output struct {
	TextEmbedding  []float32
	ImageEmbedding []float32
}

// Client posts batches of Input to a single configured endpoint.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	breaker     *resilience.Breaker
	rateLimiter *resilience.Limiter
}

// New builds a Client from the EMBEDDER_ENDPOINT configuration. The embedder
// is typically a local/co-located service, so the limiter is generous —
// it exists to smooth bursts across concurrently-running galleries, not to
// protect a rate-limited third party the way the Mercari client's does.
func New(endpoint string) *Client {
	return &Client{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		breaker:     resilience.NewBreaker(resilience.DefaultBreakerOpts),
		rateLimiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 10, Burst: 20}),
	}
}

type embedResponse struct {
	TextEmbeddings  [][]float32 `json:"text_embeddings"`
	ImageEmbeddings [][]float32 `json:"image_embeddings"`
}

// EmbedBatch sends all inputs as a single multipart request and zips the
// response back into order-preserving Outputs. A length mismatch, non-2xx,
// transport error, or parse error fails the whole batch — callers must
// treat that as a shared reason across every input, per the Embedder
// Client's no-partial-acceptance contract for this stage.
func (c *Client) EmbedBatch(ctx context.Context, inputs []Input) ([]Output, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for i, in := range inputs {
		textPart, err := writer.CreateFormField(fmt.Sprintf("text_%d", i))
		if err != nil {
			return nil, err
		}
		if _, err := textPart.Write([]byte(in.Description)); err != nil {
			return nil, err
		}

		imgPart, err := writer.CreateFormFile(fmt.Sprintf("image_%d", i), fmt.Sprintf("%d.png", i))
		if err != nil {
			return nil, err
		}
		if _, err := imgPart.Write(in.ImageBytes); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var respBody []byte
	err = c.rateLimiter.CallWait(ctx, func(ctx context.Context) error {
		return c.breaker.Call(ctx, func(ctx context.Context) error {
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("embedder transport: %w", err)
			}
			defer resp.Body.Close()

			respBody, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("embedder read: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("embedder: status %d: %s", resp.StatusCode, respBody)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	var er embedResponse
	if err := json.Unmarshal(respBody, &er); err != nil {
		return nil, fmt.Errorf("embedder: decode: %w", err)
	}

	if len(er.TextEmbeddings) != len(inputs) || len(er.ImageEmbeddings) != len(inputs) {
		return nil, fmt.Errorf("embedder: length mismatch: got %d/%d text/image embeddings for %d inputs",
			len(er.TextEmbeddings), len(er.ImageEmbeddings), len(inputs))
	}

	out := make([]Output, len(inputs))
	for i := range inputs {
		out[i] = Output{
			TextEmbedding:  er.TextEmbeddings[i],
			ImageEmbedding: er.ImageEmbeddings[i],
		}
	}
	return out, nil
}

// SelectImage fetches and re-encodes the chosen thumbnail to PNG bytes.
// bestFit is validated against len(thumbnails); out of range falls back to
// index 0. An empty thumbnails list is always an image-fetch error.
func SelectImage(ctx context.Context, httpClient *http.Client, thumbnails []string, bestFit int) ([]byte, error) {
	if len(thumbnails) == 0 {
		return nil, fmt.Errorf("no thumbnails available")
	}
	if bestFit < 0 || bestFit >= len(thumbnails) {
		bestFit = 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, thumbnails[bestFit], nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image fetch: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}
