// Package ui provides terminal UI components for the bdsc commands.
//
// Two kinds of output live here:
//
//   - Header and Result: one-shot boxes printed by commands such as
//     "bdsc-client send", rendered with Lipgloss through a Printer.
//   - PanelModel: an interactive Bubble Tea panel that shows the configured
//     buttons, lets the user press them from the keyboard, and streams the
//     client's echo events as they arrive.
//
// The panel never talks to the network itself. Key presses go to a Presser
// (normally the simulated platform), which raises the same wake signal a
// hardware edge would. Echo events arrive through a report.Channel.
//
// Example:
//
//	events := report.NewChannel(0)
//	sim := platform.NewSimulated(id)
//	// start the client with report.Multi{events, report.Log{}} ...
//	err := ui.RunPanel(ui.PanelConfig{
//	    Identity: id.String(),
//	    Endpoint: c.Endpoint().String(),
//	    Buttons:  []ui.Button{{Name: "update", Pin: "MB1"}},
//	    Presser:  sim,
//	    Events:   events.Events(),
//	})
//
// # Logging Integration
//
// zap logging is controlled by BDSC_LOG_LEVEL. When unset it is silent, so
// the curated output here is displayed cleanly.
package ui
