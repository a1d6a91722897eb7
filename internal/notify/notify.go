package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/telepathic/internal/logging"
)

// Notifier is the user-visible notification surface. Calls never block on
// the user and return nothing.
type Notifier interface {
	Toast(msg string)
	Alert(title, body string)
	Error(err error)
}

type Kind string

const (
	KindToast Kind = "toast"
	KindAlert Kind = "alert"
	KindError Kind = "error"
)

type Notification struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Title   string    `json:"title,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

func newNotification(kind Kind, title, msg string) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Kind:    kind,
		Title:   title,
		Message: msg,
		Time:    time.Now(),
	}
}

// Text renders n as a single message for chat sinks.
func (n Notification) Text() string {
	switch n.Kind {
	case KindAlert:
		return n.Title + "\n\n" + n.Message
	case KindError:
		return "Error: " + n.Message
	default:
		return n.Message
	}
}

// Log writes notifications to the log.
type Log struct{}

func (Log) Toast(msg string)         { logging.Info("notify", "%s", msg) }
func (Log) Alert(title, body string) { logging.Info("notify", "%s: %s", title, logging.Truncate(body, 200)) }
func (Log) Error(err error)          { logging.Warn("notify", "%v", err) }

// Writer prints notifications for command line use.
type Writer struct {
	W io.Writer
}

func (w Writer) Toast(msg string) { fmt.Fprintln(w.W, msg) }

func (w Writer) Alert(title, body string) {
	fmt.Fprintf(w.W, "%s\n%s\n", title, body)
}

func (w Writer) Error(err error) { fmt.Fprintf(w.W, "Error: %v\n", err) }

// Channel delivers notifications to a consumer such as the terminal UI.
// When the buffer is full new notifications are dropped.
type Channel struct {
	ch chan Notification
}

func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan Notification, size)}
}

func (c *Channel) C() <-chan Notification { return c.ch }

func (c *Channel) send(n Notification) {
	select {
	case c.ch <- n:
	default:
		logging.Debug("notify", "Notification channel full, dropping %q", n.Message)
	}
}

func (c *Channel) Toast(msg string)         { c.send(newNotification(KindToast, "", msg)) }
func (c *Channel) Alert(title, body string) { c.send(newNotification(KindAlert, title, body)) }
func (c *Channel) Error(err error)          { c.send(newNotification(KindError, "", err.Error())) }

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) add(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *Recorder) Toast(msg string)         { r.add(newNotification(KindToast, "", msg)) }
func (r *Recorder) Alert(title, body string) { r.add(newNotification(KindAlert, title, body)) }
func (r *Recorder) Error(err error)          { r.add(newNotification(KindError, "", err.Error())) }

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Toasts returns the recorded toast messages in order.
func (r *Recorder) Toasts() []string {
	return r.messages(KindToast)
}

// Errors returns the recorded error messages in order.
func (r *Recorder) Errors() []string {
	return r.messages(KindError)
}

func (r *Recorder) messages(kind Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.items {
		if n.Kind == kind {
			out = append(out, n.Message)
		}
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}

// Multi fans out to several notifiers.
type Multi []Notifier

func (m Multi) Toast(msg string) {
	for _, n := range m {
		n.Toast(msg)
	}
}

func (m Multi) Alert(title, body string) {
	for _, n := range m {
		n.Alert(title, body)
	}
}

func (m Multi) Error(err error) {
	for _, n := range m {
		n.Error(err)
	}
}
