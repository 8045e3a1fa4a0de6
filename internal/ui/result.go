package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType
	Title           string
	Details         []Param
	Error           error
	Troubleshooting []string
	Width           int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Param) *Result {
	return &Result{Type: ResultSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string, details ...Param) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Details:         details,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details ...Param) *Result {
	return &Result{Type: ResultWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

// Render returns the styled result box
func (r *Result) Render() string {
	width := r.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var lines []string
	switch r.Type {
	case ResultSuccess:
		lines = append(lines, "", SuccessTitleStyle.Render("   "+SuccessMarker+"  SUCCESS  ─  "+r.Title), "")
	case ResultFailure:
		lines = append(lines, "", ErrorTitleStyle.Render("   "+FailureMarker+"  FAILED  ─  "+r.Title), "")
	case ResultWarning:
		lines = append(lines, "", WarningTitleStyle.Render("   "+WarningMarker+"  WARNING  ─  "+r.Title), "")
	}

	for _, d := range r.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, TroubleshootingTitleStyle.Render("   Troubleshooting:"))
		for _, tip := range r.Troubleshooting {
			lines = append(lines, TroubleshootingItemStyle.Render("     • "+tip))
		}
		lines = append(lines, "")
	}

	color := SuccessColor
	switch r.Type {
	case ResultFailure:
		color = ErrorColor
	case ResultWarning:
		color = WarningColor
	}
	return BoxStyle(width, color).Render(strings.Join(lines, "\n"))
}

// Printer writes rendered components to a writer
type Printer struct {
	out io.Writer
}

// NewPrinter creates a Printer. If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w}
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(h *Header) {
	_, _ = fmt.Fprintln(p.out, h.Render())
}

// PrintResult prints a result box
func (p *Printer) PrintResult(r *Result) {
	_, _ = fmt.Fprintln(p.out, r.Render())
}

// Println writes a plain line
func (p *Printer) Println(s string) {
	_, _ = fmt.Fprintln(p.out, s)
}
