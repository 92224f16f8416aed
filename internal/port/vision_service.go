package port

import "context"

// VisionInput carries a receipt image and the extraction instruction for a vision model.
type VisionInput struct {
	ImageBytes  []byte
	ContentType string
	Prompt      string
}

// VisionOutput is the raw, untrusted reply of a vision model.
type VisionOutput struct {
	Text      string
	ModelUsed string
	Provider  string
}

// VisionService abstracts a vision-capable LLM that reads receipt images.
type VisionService interface {
	Extract(ctx context.Context, input VisionInput) (*VisionOutput, error)
}

// Pinger is implemented by services that can report network reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
