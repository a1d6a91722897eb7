package assist

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/ldi/telepathic/internal/location"
	"github.com/ldi/telepathic/internal/logging"
)

const mapsSearchURL = "https://www.google.com/maps/search/?api=1&query="

// Launcher opens things outside the app: maps, the dialer, a mail composer
// and the browser.
type Launcher interface {
	OpenMapsCoordinates(ctx context.Context, c location.Coordinates, label string) error
	OpenMapsPlace(ctx context.Context, place string) error
	OpenDialer(ctx context.Context, number string) error
	OpenEmail(ctx context.Context, to, subject string) error
	OpenURL(ctx context.Context, rawURL string) error
}

// SystemLauncher hands URLs to the desktop's default handler.
type SystemLauncher struct {
	cmdFactory func(ctx context.Context, name string, arg ...string) *exec.Cmd
	goos       string
}

func NewSystemLauncher() *SystemLauncher {
	return &SystemLauncher{
		cmdFactory: exec.CommandContext,
		goos:       runtime.GOOS,
	}
}

// MapsCoordinatesURL builds a maps search for a coordinate pair. The label is
// not part of the query; maps providers pin the coordinates themselves.
func MapsCoordinatesURL(c location.Coordinates) string {
	return mapsSearchURL + url.QueryEscape(fmt.Sprintf("%f,%f", c.Latitude, c.Longitude))
}

func MapsPlaceURL(place string) string {
	return mapsSearchURL + url.QueryEscape(place)
}

func DialerURL(number string) string {
	return "tel:" + strings.ReplaceAll(strings.TrimSpace(number), " ", "")
}

func EmailURL(to, subject string) string {
	u := "mailto:" + strings.TrimSpace(to)
	if subject != "" {
		u += "?subject=" + url.PathEscape(subject)
	}
	return u
}

func (l *SystemLauncher) OpenMapsCoordinates(ctx context.Context, c location.Coordinates, label string) error {
	logging.Debug("assist", "Opening maps at %s (%s)", c, label)
	return l.open(ctx, MapsCoordinatesURL(c))
}

func (l *SystemLauncher) OpenMapsPlace(ctx context.Context, place string) error {
	return l.open(ctx, MapsPlaceURL(place))
}

func (l *SystemLauncher) OpenDialer(ctx context.Context, number string) error {
	return l.open(ctx, DialerURL(number))
}

func (l *SystemLauncher) OpenEmail(ctx context.Context, to, subject string) error {
	return l.open(ctx, EmailURL(to, subject))
}

func (l *SystemLauncher) OpenURL(ctx context.Context, rawURL string) error {
	return l.open(ctx, rawURL)
}

func (l *SystemLauncher) open(ctx context.Context, target string) error {
	var cmd *exec.Cmd
	switch l.goos {
	case "darwin":
		cmd = l.cmdFactory(ctx, "open", target)
	case "windows":
		cmd = l.cmdFactory(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = l.cmdFactory(ctx, "xdg-open", target)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	return nil
}

// Launch is one call recorded by RecordingLauncher.
type Launch struct {
	Action string
	Target string
	Label  string
}

// RecordingLauncher remembers launches instead of performing them. It backs
// dry runs and tests. Err, when set, is returned from every call.
type RecordingLauncher struct {
	mu       sync.Mutex
	launches []Launch
	Err      error
}

func (r *RecordingLauncher) record(action, target, label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.launches = append(r.launches, Launch{Action: action, Target: target, Label: label})
	return r.Err
}

func (r *RecordingLauncher) OpenMapsCoordinates(ctx context.Context, c location.Coordinates, label string) error {
	return r.record("maps-coordinates", c.String(), label)
}

func (r *RecordingLauncher) OpenMapsPlace(ctx context.Context, place string) error {
	return r.record("maps-place", place, "")
}

func (r *RecordingLauncher) OpenDialer(ctx context.Context, number string) error {
	return r.record("dialer", number, "")
}

func (r *RecordingLauncher) OpenEmail(ctx context.Context, to, subject string) error {
	return r.record("email", to, subject)
}

func (r *RecordingLauncher) OpenURL(ctx context.Context, rawURL string) error {
	return r.record("url", rawURL, "")
}

// Launches returns a copy of everything recorded so far.
func (r *RecordingLauncher) Launches() []Launch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Launch(nil), r.launches...)
}
