package ai

import (
	"strings"
	"sync"

	"github.com/ldi/telepathic/internal/logging"
)

// Factory builds a client for the given options.
type Factory func(opts Options) Client

// Service owns the process-wide client. Callers take a snapshot with
// GetClient at the start of an operation and keep using it even if the
// credentials change underneath them.
type Service struct {
	mu      sync.RWMutex
	client  Client
	base    Options
	factory Factory
}

func NewService(base Options, factory Factory) *Service {
	if factory == nil {
		factory = func(opts Options) Client { return NewOpenAIClient(opts) }
	}
	s := &Service{base: base, factory: factory}
	if base.APIKey != "" {
		s.UpdateClient(base.APIKey, base.Model)
	}
	return s
}

func (s *Service) GetClient() (Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrNotInitialized
	}
	return s.client, nil
}

func (s *Service) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// UpdateClient swaps in a client for apiKey. An empty key uninitializes the
// service. An empty model keeps the configured one.
func (s *Service) UpdateClient(apiKey, model string) {
	apiKey = strings.TrimSpace(apiKey)

	var next Client
	if apiKey != "" {
		opts := s.base
		opts.APIKey = apiKey
		if model != "" {
			opts.Model = model
		}
		if opts.Model == "" {
			opts.Model = DefaultModel
		}
		next = s.factory(opts)
	}

	s.mu.Lock()
	s.client = next
	s.mu.Unlock()

	if next == nil {
		logging.Info("ai", "AI client cleared")
	} else {
		logging.Info("ai", "AI client updated")
	}
}
