package report

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/siotlab/bdsc/internal/logging"
)

// DefaultQueueDepth is the number of events a queued sink buffers
const DefaultQueueDepth = 64

var (
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#43BF6D"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
)

// Console writes events to a terminal or any writer from its own goroutine.
// When the writer is a terminal, lines are colored by level.
type Console struct {
	out     io.Writer
	styled  bool
	queue   chan Event
	done    chan struct{}
	dropped atomic.Uint64

	closeOnce sync.Once
}

// NewConsole starts a console sink. depth <= 0 uses DefaultQueueDepth.
func NewConsole(out io.Writer, depth int) *Console {
	if out == nil {
		out = os.Stdout
	}
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}

	c := &Console{
		out:    out,
		styled: styled,
		queue:  make(chan Event, depth),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Report queues e, or drops it when the queue is full.
func (c *Console) Report(e Event) {
	select {
	case c.queue <- e:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the queue was full
func (c *Console) Dropped() uint64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits until the queue is written out.
// Reporting after Close panics, so close only after all producers stopped.
func (c *Console) Close() {
	c.closeOnce.Do(func() {
		close(c.queue)
		<-c.done
	})
}

func (c *Console) run() {
	defer close(c.done)
	for e := range c.queue {
		_, _ = fmt.Fprintln(c.out, c.format(e))
	}
}

func (c *Console) format(e Event) string {
	stamp := e.Time.Format("15:04:05.000")
	if !c.styled {
		if e.Source != "" {
			return fmt.Sprintf("%s [%s] %s", stamp, e.Source, e.Text)
		}
		return fmt.Sprintf("%s %s", stamp, e.Text)
	}

	text := e.Text
	switch e.Level {
	case LevelSuccess:
		text = successStyle.Render(text)
	case LevelWarning:
		text = warningStyle.Render(text)
	case LevelFailure:
		text = failureStyle.Render(text)
	}

	line := timeStyle.Render(stamp) + " "
	if e.Source != "" {
		line += sourceStyle.Render("["+e.Source+"]") + " "
	}
	return line + text
}

// Log mirrors events into the structured log.
type Log struct{}

// Report logs e at a level matching its severity
func (Log) Report(e Event) {
	fields := []zap.Field{zap.String("source", e.Source)}
	if e.ExchangeID != "" {
		fields = append(fields, zap.String("exchange_id", e.ExchangeID))
	}

	switch e.Level {
	case LevelFailure, LevelWarning:
		logging.Warn(e.Text, fields...)
	default:
		logging.Info(e.Text, fields...)
	}
}

// Channel exposes events on a buffered channel for in-process consumers
// such as the terminal panel. Events are dropped when nobody keeps up.
type Channel struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewChannel creates a channel sink. depth <= 0 uses DefaultQueueDepth.
func NewChannel(depth int) *Channel {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Channel{ch: make(chan Event, depth)}
}

// Report queues e without blocking
func (c *Channel) Report(e Event) {
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

// Events returns the receive side of the sink
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events were discarded
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}
