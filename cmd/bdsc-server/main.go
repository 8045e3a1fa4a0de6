// Bdsc-server is the reference register server for bdsc clients.
//
// It reads newline-terminated commands from each TCP connection until the
// peer closes it, applies writes to an in-memory register store keyed by
// client identity, and answers every command with a fixed-length reply.
// The bdsc client sends a single command per connection. It is meant for bench testing clients
// without the production server.
//
// Usage:
//
//	bdsc-server serve [flags]
//
// See 'bdsc-server serve --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/siotlab/bdsc/internal/logging"
	"github.com/siotlab/bdsc/internal/report"
	"github.com/siotlab/bdsc/internal/resolve"
	"github.com/siotlab/bdsc/internal/server"
	"github.com/siotlab/bdsc/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bdsc-server",
	Short: "BDSC Reference Register Server",
	Long: `A standalone register server speaking the bdsc line protocol.

Clients send W-BDSC-<mac>-<reg>-<value> to write a register and
R-BDSC-<mac>-<reg> to read one. Each command gets a 27-byte reply:
A (ack), V (value) or E (error), followed by the identity, register
and value.

Note: For the button client, use the separate 'bdsc-client' utility.`,
	Version: version.Full(),
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	host        string
	port        int
	logLevel    string
	replyDelay  time.Duration
	idleTimeout time.Duration
	advertise   bool
	instance    string
	quiet       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the register server",
	Long: `Start the register server and accept client connections.

Every handled command is echoed to stdout unless --quiet is given.
Use --reply-delay to hold replies back and exercise client read
timeouts. With --advertise the server registers itself over mDNS so
clients configured with an mDNS service can find it without DNS.`,
	Example: `  # Start on the default port
  bdsc-server serve

  # Delay every reply past the client's 500ms read timeout
  bdsc-server serve --reply-delay 750ms

  # Advertise over mDNS as "bench"
  bdsc-server serve --advertise --instance bench --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", resolve.DefaultPort, "Server port")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().DurationVar(&replyDelay, "reply-delay", 0, "Delay before every reply")
	serveCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", server.DefaultIdleTimeout, "Close connections idle for this long")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Advertise the server over mDNS")
	serveCmd.Flags().StringVar(&instance, "instance", resolve.DefaultHostname, "mDNS instance name; clients match it against server.hostname")
	serveCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not echo handled commands")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	if replyDelay < 0 {
		return fmt.Errorf("reply delay must not be negative")
	}

	var reporter report.Reporter = report.Discard
	if !quiet {
		console := report.NewConsole(os.Stdout, 0)
		defer console.Close()
		reporter = console
	}

	srv := server.New(&server.Config{
		Host:        host,
		Port:        port,
		ReplyDelay:  replyDelay,
		IdleTimeout: idleTimeout,
		Advertise:   advertise,
		Instance:    instance,
		Reporter:    reporter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("bdsc-server %s listening on port %d\n", version.Version, port)
	return srv.Start(ctx)
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String("bdsc-server"))
	},
}
