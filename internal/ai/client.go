package ai

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

var ErrNotInitialized = errors.New("AI client has not been initialized, please provide an API key first")

const DefaultModel = "gpt-4o-mini"

// Client is one configured connection to a completion backend. A Client is
// immutable once built; changing credentials produces a new Client.
type Client interface {
	// Structured asks for a JSON answer decoded into out. The model may call
	// any of tools before answering.
	Structured(ctx context.Context, prompt string, out any, tools ...server.ServerTool) error
	Text(ctx context.Context, prompt string) (string, error)
	StructuredWithImage(ctx context.Context, prompt string, image []byte, mimeType string, out any) error
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Provider hands out the current client snapshot.
type Provider interface {
	GetClient() (Client, error)
	IsInitialized() bool
}

type Options struct {
	APIKey             string
	Model              string
	BaseURL            string
	TranscriptionModel string
}
