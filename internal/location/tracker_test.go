package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type funcProvider func(ctx context.Context, req Request) (*Coordinates, error)

func (f funcProvider) CurrentLocation(ctx context.Context, req Request) (*Coordinates, error) {
	return f(ctx, req)
}

func TestTrackerLabels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		coords *Coordinates
		err    error
		want   string
	}{
		{"Resolved", &Coordinates{Latitude: 1.23456, Longitude: 7.65432}, nil, "Lat: 1.2346, Long: 7.6543"},
		{"Unknown", nil, nil, LabelUnavailable},
		{"Not supported", nil, ErrNotSupported, LabelNotSupported},
		{"Permission", nil, ErrPermissionDenied, LabelNoPermission},
		{"Other error", nil, errors.New("gps cold"), "Error: gps cold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil)
			tr := NewTracker(funcProvider(func(ctx context.Context, req Request) (*Coordinates, error) {
				return tt.coords, tt.err
			}), svc)

			var pushed string
			tr.OnLabel(func(l string) { pushed = l })

			if got := tr.Enable(ctx); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if pushed != tt.want {
				t.Errorf("expected callback with %q, got %q", tt.want, pushed)
			}
			_, ok := svc.CurrentLocation()
			if ok != (tt.coords != nil) {
				t.Errorf("service location set = %v, want %v", ok, tt.coords != nil)
			}
		})
	}
}

func TestTrackerDisableCancelsInFlight(t *testing.T) {
	svc := NewService(nil)
	svc.SetCurrentLocation(Coordinates{Latitude: 1, Longitude: 1})

	started := make(chan struct{})
	var cancelled bool
	var mu sync.Mutex

	tr := NewTracker(funcProvider(func(ctx context.Context, req Request) (*Coordinates, error) {
		close(started)
		<-ctx.Done()
		mu.Lock()
		cancelled = true
		mu.Unlock()
		return nil, ctx.Err()
	}), svc)

	done := make(chan string)
	go func() { done <- tr.Refresh(context.Background()) }()

	<-started
	tr.Disable()

	select {
	case label := <-done:
		if label != LabelDisabled {
			t.Errorf("expected superseded request to report %q, got %q", LabelDisabled, label)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request was not cancelled")
	}

	mu.Lock()
	defer mu.Unlock()
	if !cancelled {
		t.Error("expected provider context to be cancelled")
	}
	if tr.Label() != LabelDisabled {
		t.Errorf("expected disabled label, got %q", tr.Label())
	}
	if _, ok := svc.CurrentLocation(); ok {
		t.Error("expected location cleared on disable")
	}
}

func TestTrackerRefreshSupersedesPrevious(t *testing.T) {
	svc := NewService(nil)
	first := make(chan struct{})
	var calls int
	var mu sync.Mutex

	tr := NewTracker(funcProvider(func(ctx context.Context, req Request) (*Coordinates, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(first)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &Coordinates{Latitude: 2, Longitude: 3}, nil
	}), svc)

	done := make(chan string)
	go func() { done <- tr.Refresh(context.Background()) }()
	<-first

	if got := tr.Refresh(context.Background()); got != "Lat: 2.0000, Long: 3.0000" {
		t.Errorf("unexpected label from second request %q", got)
	}
	if got := <-done; got == "Error: "+context.Canceled.Error() {
		t.Errorf("superseded request must not publish its cancellation, got %q", got)
	}
	if tr.Label() != "Lat: 2.0000, Long: 3.0000" {
		t.Errorf("expected newest label to stick, got %q", tr.Label())
	}
}

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	if _, err := NewStaticProvider(nil, nil).CurrentLocation(ctx, DefaultRequest); !errors.Is(err, ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
	lat, lng := 10.0, 20.0
	c, err := NewStaticProvider(&lat, &lng).CurrentLocation(ctx, DefaultRequest)
	if err != nil || c.Latitude != 10 || c.Longitude != 20 {
		t.Errorf("unexpected result %v, %v", c, err)
	}
}
