// Package server implements the reference register server the client
// talks to.
//
// The server accepts TCP connections and reads newline-terminated command
// frames:
//
//	W-BDSC-<12 hex identity>-<2 hex register>-<4 hex value>\n
//	R-BDSC-<12 hex identity>-<2 hex register>\n
//
// Every frame is answered with exactly protocol.ReplyLength bytes and no
// terminator:
//
//	A-BDSC-<identity>-<register>-<stored value>   write acknowledged
//	V-BDSC-<identity>-<register>-<current value>  read answered
//	E-BDSC-<identity>-<register>-0000             frame rejected
//
// Registers are kept per client identity in memory; unset registers read
// as zero. A connection may carry any number of frames and is closed when
// idle for longer than the idle timeout.
//
// # Testing Client Timeouts
//
// ReplyDelay holds every reply back. Setting it above the client's read
// timeout makes every exchange end in "No response"; setting it between
// the connect and read timeouts exercises the bounded read.
//
// # Discovery
//
// With Advertise set the server registers itself over mDNS as
// "_bdsc._tcp" so clients on the same segment can find it by instance
// name when plain DNS has no entry.
package server
