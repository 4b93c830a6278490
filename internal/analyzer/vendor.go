package analyzer

import "context"

// Image is a single fetched-and-decoded thumbnail, ready to embed in a
// vendor request.
type Image struct {
	PNGBytes  []byte
	MediaType string // "image/png"
}

// VendorHTTPError captures a non-2xx vendor response so the analyzer can
// classify it as a per-item error with the status and body preserved.
type VendorHTTPError struct {
	Status int
	Body   string
}

func (e *VendorHTTPError) Error() string {
	return "vendor http error"
}

// VendorClient is the minimal contract the LLM Analyzer needs from a
// vendor's message envelope (Anthropic, OpenAI, ...): send one system
// prompt, the item's images in order, and the item JSON, get back the
// raw text content of the first choice/message.
type VendorClient interface {
	Complete(ctx context.Context, systemPrompt string, images []Image, itemJSON string) (string, error)
}
