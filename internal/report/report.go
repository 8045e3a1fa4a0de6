// Package report carries the user-visible echo of what the client does:
// every exchange outcome, the resolved endpoint, the identity and startup
// failures.
//
// Reporters are fire-and-forget. Report must return promptly and must
// never block the caller on a slow consumer; sinks that do I/O queue the
// event and drop it when their queue is full.
package report

import (
	"fmt"
	"time"
)

// Level classifies an event for display
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelFailure
)

// String returns a human-readable level name
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelFailure:
		return "failure"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Event is one line of echo output.
type Event struct {
	Time       time.Time `json:"time"`
	Level      Level     `json:"-"`
	LevelName  string    `json:"level"`
	Source     string    `json:"source,omitempty"`
	ExchangeID string    `json:"exchange_id,omitempty"`
	Text       string    `json:"text"`
}

// NewEvent stamps an event with the current time.
func NewEvent(level Level, source, text string) Event {
	return Event{
		Time:      time.Now(),
		Level:     level,
		LevelName: level.String(),
		Source:    source,
		Text:      text,
	}
}

// String renders the event as a single plain line
func (e Event) String() string {
	if e.Source != "" {
		return fmt.Sprintf("[%s] %s", e.Source, e.Text)
	}
	return e.Text
}

// Reporter receives events.
type Reporter interface {
	Report(e Event)
}

// Func adapts a function to the Reporter interface.
type Func func(e Event)

// Report calls f(e)
func (f Func) Report(e Event) {
	f(e)
}

// Discard drops every event.
var Discard Reporter = Func(func(Event) {})

// Multi fans an event out to several reporters in order.
type Multi []Reporter

// Report forwards e to every reporter
func (m Multi) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}

// Infof reports an informational line.
func Infof(r Reporter, source, format string, args ...any) {
	r.Report(NewEvent(LevelInfo, source, fmt.Sprintf(format, args...)))
}

// Warnf reports a warning line.
func Warnf(r Reporter, source, format string, args ...any) {
	r.Report(NewEvent(LevelWarning, source, fmt.Sprintf(format, args...)))
}

// Failf reports a failure line.
func Failf(r Reporter, source, format string, args ...any) {
	r.Report(NewEvent(LevelFailure, source, fmt.Sprintf(format, args...)))
}

// Successf reports a success line.
func Successf(r Reporter, source, format string, args ...any) {
	r.Report(NewEvent(LevelSuccess, source, fmt.Sprintf(format, args...)))
}
