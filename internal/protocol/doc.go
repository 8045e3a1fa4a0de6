// Package protocol implements the BDSC line protocol.
//
// A client identifies itself with its 6-byte hardware address and sends one
// ASCII command per connection. Commands either write a 16-bit value to a
// register or ask for a register's value.
//
// # Frame Format
//
// Outbound frames are newline-terminated and case-sensitive:
//
//	W-BDSC-AABBCCDDEEFF-10-0001\n   write 0x0001 to register 0x10
//	R-BDSC-AABBCCDDEEFF-10\n        read register 0x10
//
// The identity is rendered as 12 uppercase hex digits with no separators,
// the register as 2 digits and the value as 4 digits, all zero padded.
// A write frame is exactly MaxFrameLen bytes; Encode refuses anything that
// would not fit.
//
// # Replies
//
// The reply format belongs to the server. The client reads a fixed number of
// bytes (ReplyLength by default) and only distinguishes a complete reply
// from a short one. The reference server in this repository answers with
//
//	A-BDSC-AABBCCDDEEFF-10-0001     write acknowledged
//	V-BDSC-AABBCCDDEEFF-10-0001     read answered
//	E-BDSC-AABBCCDDEEFF-10-0000     command rejected
//
// which ParseReply decodes for display purposes.
//
// # Usage Example
//
//	frame, err := protocol.Encode(id, protocol.Write(0x10, 1))
//	if err != nil {
//	    return err // errors.Is(err, protocol.ErrInvalidCommand)
//	}
//	_, err = conn.Write(frame.Bytes())
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package protocol
