package ai

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/server"
)

// Fake is an in-memory Client for tests and offline runs. Unset functions
// return zero values.
type Fake struct {
	mu sync.Mutex

	StructuredFunc func(ctx context.Context, prompt string, out any, tools []server.ServerTool) error
	TextFunc       func(ctx context.Context, prompt string) (string, error)
	ImageFunc      func(ctx context.Context, prompt string, image []byte, mimeType string, out any) error
	TranscribeFunc func(ctx context.Context, audioPath string) (string, error)

	structuredCalls int
	textCalls       int
	imageCalls      int
	transcribeCalls int
	prompts         []string
	toolNames       []string
}

// RespondWith returns a StructuredFunc that decodes v into every answer.
func RespondWith(v any) func(ctx context.Context, prompt string, out any, tools []server.ServerTool) error {
	return func(ctx context.Context, prompt string, out any, tools []server.ServerTool) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, out)
	}
}

func (f *Fake) Structured(ctx context.Context, prompt string, out any, tools ...server.ServerTool) error {
	f.mu.Lock()
	f.structuredCalls++
	f.prompts = append(f.prompts, prompt)
	f.toolNames = f.toolNames[:0]
	for _, t := range tools {
		f.toolNames = append(f.toolNames, t.Tool.Name)
	}
	fn := f.StructuredFunc
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, prompt, out, tools)
}

func (f *Fake) Text(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.textCalls++
	f.prompts = append(f.prompts, prompt)
	fn := f.TextFunc
	f.mu.Unlock()

	if fn == nil {
		return "", nil
	}
	return fn(ctx, prompt)
}

func (f *Fake) StructuredWithImage(ctx context.Context, prompt string, image []byte, mimeType string, out any) error {
	f.mu.Lock()
	f.imageCalls++
	f.prompts = append(f.prompts, prompt)
	fn := f.ImageFunc
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, prompt, image, mimeType, out)
}

func (f *Fake) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f.mu.Lock()
	f.transcribeCalls++
	fn := f.TranscribeFunc
	f.mu.Unlock()

	if fn == nil {
		return "", nil
	}
	return fn(ctx, audioPath)
}

// Calls returns the total number of backend calls made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.structuredCalls + f.textCalls + f.imageCalls + f.transcribeCalls
}

func (f *Fake) StructuredCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.structuredCalls
}

func (f *Fake) TextCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls
}

// LastPrompt returns the most recent prompt sent to the fake.
func (f *Fake) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// LastTools returns the tool names offered on the most recent Structured call.
func (f *Fake) LastTools() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.toolNames...)
}

// NewFakeService returns a Service already initialized with client.
func NewFakeService(client Client) *Service {
	return NewService(Options{APIKey: "test-key"}, func(Options) Client { return client })
}
