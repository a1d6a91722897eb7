package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ldi/telepathic/internal/logging"
)

var (
	ErrNotSupported     = errors.New("location not supported")
	ErrPermissionDenied = errors.New("location permission denied")
)

const (
	LabelUnavailable  = "Location unavailable"
	LabelNotSupported = "Location not supported on this device"
	LabelNoPermission = "Location permission not granted"
	LabelDisabled     = "Location not available"
)

type Accuracy string

const (
	AccuracyLow    Accuracy = "low"
	AccuracyMedium Accuracy = "medium"
	AccuracyHigh   Accuracy = "high"
)

type Request struct {
	Accuracy Accuracy
	Timeout  time.Duration
}

// DefaultRequest matches a medium-accuracy fix with a ten second budget.
var DefaultRequest = Request{Accuracy: AccuracyMedium, Timeout: 10 * time.Second}

// Provider resolves the device location. A nil result with a nil error means
// the location is currently unknown.
type Provider interface {
	CurrentLocation(ctx context.Context, req Request) (*Coordinates, error)
}

// StaticProvider serves a fixed, configured location.
type StaticProvider struct {
	coords *Coordinates
}

func NewStaticProvider(lat, lng *float64) *StaticProvider {
	if lat == nil || lng == nil {
		return &StaticProvider{}
	}
	return &StaticProvider{coords: &Coordinates{Latitude: *lat, Longitude: *lng}}
}

func (p *StaticProvider) CurrentLocation(ctx context.Context, req Request) (*Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.coords == nil {
		return nil, ErrNotSupported
	}
	c := *p.coords
	return &c, nil
}

// Tracker keeps at most one location request in flight. Starting a new
// request or disabling tracking cancels the previous one.
type Tracker struct {
	provider Provider
	svc      *Service
	request  Request

	mu      sync.Mutex
	cancel  context.CancelFunc
	gen     uint64
	label   string
	onLabel func(string)
}

func NewTracker(provider Provider, svc *Service) *Tracker {
	return &Tracker{
		provider: provider,
		svc:      svc,
		request:  DefaultRequest,
		label:    LabelDisabled,
	}
}

// OnLabel registers a callback for label changes.
func (t *Tracker) OnLabel(fn func(string)) {
	t.mu.Lock()
	t.onLabel = fn
	t.mu.Unlock()
}

func (t *Tracker) Label() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.label
}

// Enable starts tracking and performs the first lookup.
func (t *Tracker) Enable(ctx context.Context) string {
	return t.Refresh(ctx)
}

// Refresh requests a fresh location. It blocks until the provider answers,
// the request times out, or a newer Refresh or Disable supersedes it.
func (t *Tracker) Refresh(ctx context.Context) string {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	var reqCtx context.Context
	var cancel context.CancelFunc
	if t.request.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, t.request.Timeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}
	t.cancel = cancel
	t.gen++
	gen := t.gen
	t.mu.Unlock()
	defer cancel()

	coords, err := t.provider.CurrentLocation(reqCtx, t.request)

	t.mu.Lock()
	if gen != t.gen {
		label := t.label
		t.mu.Unlock()
		logging.Debug("location", "Discarding superseded location request")
		return label
	}
	t.cancel = nil

	var label string
	switch {
	case err == nil && coords != nil:
		t.svc.SetCurrentLocation(*coords)
		label = coords.Label()
	case err == nil:
		label = LabelUnavailable
	case errors.Is(err, ErrNotSupported):
		label = LabelNotSupported
	case errors.Is(err, ErrPermissionDenied):
		label = LabelNoPermission
	default:
		logging.Warn("location", "Location request failed: %v", err)
		label = "Error: " + err.Error()
	}
	fn := t.setLabelLocked(label)
	t.mu.Unlock()

	if fn != nil {
		fn(label)
	}
	return label
}

// Disable cancels any in-flight request and forgets the current location.
func (t *Tracker) Disable() {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	t.svc.ClearCurrentLocation()
	fn := t.setLabelLocked(LabelDisabled)
	t.mu.Unlock()

	if fn != nil {
		fn(LabelDisabled)
	}
}

func (t *Tracker) setLabelLocked(label string) func(string) {
	t.label = label
	return t.onLabel
}
