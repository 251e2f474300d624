// Package notify is the user-facing message surface shared by the request
// pipeline and the router.
package notify

import (
	"fmt"
	"io"
	"sync"
)

// Level is the severity of a notification
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier shows transient messages to the user
type Notifier interface {
	Notify(level Level, message string)
}

// Console writes notifications to a terminal stream (stderr for the CLI)
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console notifier writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Notify(level Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var prefix string
	switch level {
	case LevelError:
		prefix = "✗"
	case LevelWarning:
		prefix = "⚠"
	default:
		prefix = "✓"
	}
	fmt.Fprintf(c.out, "%s %s\n", prefix, message)
}

// Message is one recorded notification
type Message struct {
	Level Level
	Text  string
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: message})
}

// Messages returns a copy of everything recorded so far
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Len returns the number of recorded notifications
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Reset drops all recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
