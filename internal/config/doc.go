// Package config manages the YAML configuration file of the bdsc client.
//
// The file describes the server (hostname, port, static fallback), the
// exchange bounds (connect, read and write timeouts, reply length), the
// network bring-up, the button sources and their actions, and the
// optional echo monitor. Everything is read once at startup.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/bdsc/config.yaml or $HOME/.config/bdsc/config.yaml
//   - macOS: $HOME/.config/bdsc/config.yaml
//   - Windows: %LOCALAPPDATA%\bdsc\config.yaml
//
// A missing file is not an error: Load returns Default(). Keys missing
// from a file keep their default values.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Hostname, cfg.Server.Port)
//
// # Example File
//
//	version: 1
//	server:
//	  hostname: iotserver2
//	  port: 6999
//	  fallback: 198.51.100.3
//	  lookup_timeout: 5s
//	transport:
//	  connect_timeout: 2s
//	  read_timeout: 500ms
//	  reply_length: 27
//	sources:
//	  - name: update
//	    pin: MB1
//	    action: toggle
//	    register: 0x10
//	    off: 0
//	    on: 1
//	  - name: inquiry
//	    pin: MB0
//	    action: inquiry
//	    register: 0x10
//
// # Thread Safety
//
// Writes from one process are serialized by a mutex and are atomic on
// disk (temporary file plus rename).
package config
