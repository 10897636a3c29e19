// Package codec encodes and decodes the subset of the LEGO Wireless Protocol
// the lifecycle core needs: hub attached I/O, port information, port input
// format setup, port values, and port output commands.
//
// The full LWP message catalog is deliberately out of scope; payloads of
// messages the core does not interpret pass through as opaque bytes.
package codec
