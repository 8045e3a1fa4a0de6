package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/siotlab/bdsc/internal/client"
	"github.com/siotlab/bdsc/internal/config"
	"github.com/siotlab/bdsc/internal/logging"
	"github.com/siotlab/bdsc/internal/monitor"
	"github.com/siotlab/bdsc/internal/platform"
	"github.com/siotlab/bdsc/internal/protocol"
	"github.com/siotlab/bdsc/internal/report"
	"github.com/siotlab/bdsc/internal/resolve"
	"github.com/siotlab/bdsc/internal/transport"
	"github.com/siotlab/bdsc/internal/ui"
)

// monitorShutdownTimeout bounds closing the monitor listener on exit
const monitorShutdownTimeout = 2 * time.Second

// Command flags
var (
	browse        bool
	browseTimeout time.Duration
	forceInit     bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(panelCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(configCmd)

	sendCmd.AddCommand(sendWriteCmd)
	sendCmd.AddCommand(sendReadCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

// newPlatform returns the host platform, or a simulated one when
// --simulate is set. sim is nil on the host.
func newPlatform() (p client.Platform, sim *platform.Simulated) {
	if simulate {
		sim = platform.NewSimulated(protocol.Identity{})
		return sim, sim
	}
	return platform.NewHost(platform.HostOptions{
		GPIORoot: cfg.GPIO.Root,
		Pins:     cfg.GPIO.Pins,
	}), nil
}

// withMonitor adds the WebSocket monitor to sinks when monitor.listen is
// configured. The returned func stops it.
func withMonitor(sinks report.Multi) (report.Reporter, func(), error) {
	if cfg.Monitor.Listen == "" {
		return sinks, func() {}, nil
	}

	hub := monitor.New(0)
	if err := hub.Start(cfg.Monitor.Listen); err != nil {
		return nil, nil, fmt.Errorf("failed to start monitor: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Monitor listening on ws://%s%s\n", hub.Addr(), monitor.EventsPath)

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), monitorShutdownTimeout)
		defer cancel()
		_ = hub.Shutdown(ctx)
	}
	return append(sinks, hub), stop, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runCmd starts the client and serves button presses
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the client and serve button presses",
	Long: `Bring the device up, resolve the server and start one worker per
configured source. Runs until interrupted.

With --simulate no GPIO is used. Instead, type a source name (e.g.
"update") or pin name (e.g. "MB1") on stdin and press Enter to press
that button.`,
	Example: `  # Run on the host GPIO
  bdsc-client run

  # Run without hardware, pressing buttons from the keyboard
  bdsc-client run --simulate

  # Press update twice then inquiry, non-interactively
  printf 'update\nupdate\ninquiry\n' | bdsc-client run --simulate`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	console := report.NewConsole(os.Stdout, 0)
	defer console.Close()

	reporter, stopMonitor, err := withMonitor(report.Multi{console, report.Log{}})
	if err != nil {
		return err
	}
	defer stopMonitor()

	p, sim := newPlatform()
	c, err := client.New(cfg, p, client.WithReporter(reporter))
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Start(ctx); err != nil {
		return err
	}

	if sim != nil {
		fmt.Fprintln(os.Stderr, "Type a source or pin name and press Enter to press it")
		go readPresses(ctx, os.Stdin, sim)
	}

	return c.Run(ctx)
}

// readPresses presses the button named on each input line until ctx ends
// or the input closes.
func readPresses(ctx context.Context, r io.Reader, sim *platform.Simulated) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		pin := name
		if src, ok := cfg.Source(name); ok {
			pin = src.Pin
		}
		if err := sim.Press(pin); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot press %s: %v\n", name, err)
		}
	}
}

// panelCmd runs the interactive panel
var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Launch the interactive button panel",
	Long: `Launch a terminal panel with one button per configured source.

The panel always uses a simulated platform: pressing 1-9 presses the
matching button, and every exchange is shown as it completes along with
the last value seen for each register.`,
	Example: `  # Panel against the configured server
  bdsc-client panel

  # Panel against a local reference server
  bdsc-server serve &
  bdsc-client panel --config ./bench.yaml`,
	RunE: runPanel,
}

func runPanel(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	events := report.NewChannel(0)
	reporter, stopMonitor, err := withMonitor(report.Multi{events, report.Log{}})
	if err != nil {
		return err
	}
	defer stopMonitor()

	sim := platform.NewSimulated(protocol.Identity{})
	c, err := client.New(cfg, sim, client.WithReporter(reporter))
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Start(ctx); err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- c.Run(ctx)
	}()

	buttons := make([]ui.Button, 0, len(c.Sources()))
	for _, src := range c.Sources() {
		buttons = append(buttons, ui.Button{Name: src.Name, Pin: src.Pin})
	}

	panelErr := ui.RunPanel(ui.PanelConfig{
		Title:    "bdsc panel",
		Identity: c.Identity().String(),
		Endpoint: c.Endpoint().String(),
		Buttons:  buttons,
		Presser:  sim,
		Events:   events.Events(),
	})

	stop()
	if err := <-runErr; err != nil {
		return err
	}
	if panelErr != nil {
		return fmt.Errorf("panel error: %w", panelErr)
	}
	return nil
}

// sendCmd groups the one-shot exchange commands
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single command to the server",
	Long: `Resolve the server and perform exactly one exchange, as if a button
had been pressed, then print the result.

Registers and values accept decimal or 0x-prefixed hex.`,
}

var sendWriteCmd = &cobra.Command{
	Use:   "write <register> <value>",
	Short: "Write a register value",
	Example: `  # Turn register 0x10 on
  bdsc-client send write 0x10 1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := parseRegister(args[0])
		if err != nil {
			return err
		}
		val, err := parseValue(args[1])
		if err != nil {
			return err
		}
		return runSend(cmd, args, protocol.Write(reg, val))
	},
}

var sendReadCmd = &cobra.Command{
	Use:   "read <register>",
	Short: "Read a register value",
	Example: `  # Read register 0x10
  bdsc-client send read 0x10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := parseRegister(args[0])
		if err != nil {
			return err
		}
		return runSend(cmd, args, protocol.Read(reg))
	},
}

func parseRegister(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid register %q (0-255 or 0x00-0xFF)", s)
	}
	return byte(v), nil
}

func parseValue(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q (0-65535 or 0x0000-0xFFFF)", s)
	}
	return uint16(v), nil
}

func runSend(cmd *cobra.Command, args []string, command protocol.Command) error {
	ctx, stop := signalContext()
	defer stop()

	reporter, stopMonitor, err := withMonitor(report.Multi{report.Log{}})
	if err != nil {
		return err
	}
	defer stopMonitor()

	p, _ := newPlatform()
	c, err := client.New(cfg, p, client.WithReporter(reporter))
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Prepare(ctx); err != nil {
		return err
	}

	printer := ui.NewPrinter(os.Stdout)
	printer.PrintHeader(ui.NewHeader("send",
		cmd.CommandPath()+" "+strings.Join(args, " "),
		ui.Param{Key: "Server", Value: c.Endpoint().String()},
		ui.Param{Key: "Identity", Value: c.Identity().String()},
		ui.Param{Key: "Command", Value: command.String()},
	))

	res, err := c.Send(ctx, command)
	if err != nil {
		return err
	}

	details := []ui.Param{
		{Key: "Frame", Value: res.Frame},
		{Key: "Elapsed", Value: res.Elapsed.Round(time.Millisecond).String()},
		{Key: "Exchange", Value: res.ID},
	}

	if !res.OK() {
		printer.PrintResult(ui.NewFailureResult(res.Outcome.String(), res.Err,
			transport.TroubleshootingHints(res.Err), details...))
		return fmt.Errorf("exchange failed: %s", res.Outcome)
	}

	details = append([]ui.Param{{Key: "Response", Value: res.Reply.Text()}}, details...)
	fields, ok := protocol.ParseReply(res.Reply)
	if !ok {
		printer.PrintResult(ui.NewSuccessResult("Server Response", details...))
		return nil
	}

	details = append(details,
		ui.Param{Key: "Status", Value: fields.Status.String()},
		ui.Param{Key: "Register", Value: fmt.Sprintf("0x%02X", fields.Register)},
		ui.Param{Key: "Value", Value: fmt.Sprintf("0x%04X", fields.Value)},
	)
	if fields.Status == protocol.StatusError {
		printer.PrintResult(ui.NewWarningResult("Server rejected the command", details...))
		return nil
	}
	printer.PrintResult(ui.NewSuccessResult("Server Response", details...))
	return nil
}

// resolveCmd shows where the client would connect
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the server endpoint",
	Long: `Run the same lookup the client performs at startup and show the
endpoint it would use, including whether the static fallback applies.

With --browse, list every server advertising the configured mDNS
service instead.`,
	Example: `  # Where would the client connect?
  bdsc-client resolve

  # List advertised servers for 5 seconds
  bdsc-client resolve --browse --timeout 5s`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&browse, "browse", false, "Browse mDNS advertisements instead of resolving")
	resolveCmd.Flags().DurationVar(&browseTimeout, "timeout", resolve.DefaultBrowseTimeout, "mDNS browse duration")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	if browse {
		return runBrowse(ctx)
	}

	fallback, err := cfg.FallbackAddr()
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(os.Stdout)
	printer.PrintHeader(ui.NewHeader("resolve", cmd.CommandPath(),
		ui.Param{Key: "Hostname", Value: cfg.Server.Hostname},
		ui.Param{Key: "Fallback", Value: cfg.Server.Fallback},
		ui.Param{Key: "Timeout", Value: cfg.Server.LookupTimeout.String()},
	))

	ep := resolve.Lookup(ctx, client.DefaultResolver(cfg), resolve.Options{
		Host:     cfg.Server.Hostname,
		Port:     cfg.Server.Port,
		Fallback: fallback,
		Timeout:  cfg.Server.LookupTimeout,
	})

	details := []ui.Param{
		{Key: "Endpoint", Value: ep.AddrPort().String()},
		{Key: "Source", Value: ep.Source},
	}
	if ep.Fallback {
		if ep.Err != nil {
			details = append(details, ui.Param{Key: "Reason", Value: ep.Err.Error()})
		}
		printer.PrintResult(ui.NewWarningResult("Using fallback address", details...))
		return nil
	}
	printer.PrintResult(ui.NewSuccessResult("Server found", details...))
	return nil
}

func runBrowse(ctx context.Context) error {
	service := cfg.Server.MDNSService
	if service == "" {
		service = resolve.ServiceType
	}
	fmt.Printf("Browsing for %s servers (timeout: %s)...\n\n", service, browseTimeout)

	servers, err := resolve.MDNS{Service: service, Timeout: browseTimeout}.Browse(ctx)
	if err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}

	if len(servers) == 0 {
		fmt.Println("No servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the server was started with --advertise")
		fmt.Println("  - Check that this machine is on the same network segment")
		fmt.Println("  - Try increasing --timeout")
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(servers))
	for i, s := range servers {
		fmt.Printf("%d. %s\n", i+1, s.Instance)
		fmt.Printf("   Host:    %s\n", s.Hostname)
		fmt.Printf("   Address: %s:%d\n", s.Addr, s.Port)
		if len(s.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", s.Metadata)
		}
		fmt.Println()
	}
	return nil
}

// configCmd manages the configuration file. It does not load the file
// itself, so a broken file can still be replaced.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Example: `  bdsc-client config init
  bdsc-client config init --config ./bench.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Init(configPath, forceInit)
		if errors.Is(err, config.ErrExists) {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		path := configPath
		if path == "" {
			if path, err = config.GetConfigPath(); err != nil {
				return err
			}
		}
		data, err := loaded.Marshal(path)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}
