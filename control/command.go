// Package control carries the out-of-band steering plane: a closed set of
// commands with a fixed human-readable wire encoding, published and consumed
// over Watermill pub/sub. Commands are decoded once at the boundary; the rest
// of the system never matches on raw bytes.
package control

// Command is one steering command. The zero value is Unknown.
type Command int

const (
	// Unknown is any payload outside the recognized token set. Unknown
	// commands are ignored, keeping the wire format forward-compatible.
	Unknown Command = iota

	// Pause stops the proxy from pulling messages off either data
	// endpoint; the control channel stays live.
	Pause

	// Resume returns a paused proxy to relaying.
	Resume

	// Terminate ends the proxy run. It does not affect workers.
	Terminate

	// Stop ends worker loops. It is consumed by workers, not the proxy.
	Stop

	// Statistics asks the proxy to publish a snapshot of its run counters.
	Statistics
)

// Wire tokens. The encoding is a single-frame message holding the bare ASCII
// token, kept byte-identical to the established steerable-proxy protocol.
const (
	tokenPause      = "PAUSE"
	tokenResume     = "RESUME"
	tokenTerminate  = "TERMINATE"
	tokenStop       = "STOP"
	tokenStatistics = "STATISTICS"
)

// Parse decodes a wire payload. ok is false for unrecognized payloads.
// Trailing NUL bytes are tolerated: some controllers send C strings with the
// terminator included.
func Parse(payload []byte) (cmd Command, ok bool) {
	for len(payload) > 0 && payload[len(payload)-1] == 0 {
		payload = payload[:len(payload)-1]
	}
	switch string(payload) {
	case tokenPause:
		return Pause, true
	case tokenResume:
		return Resume, true
	case tokenTerminate:
		return Terminate, true
	case tokenStop:
		return Stop, true
	case tokenStatistics:
		return Statistics, true
	}
	return Unknown, false
}

// Payload returns the command's wire encoding. Unknown has no encoding and
// returns nil.
func (c Command) Payload() []byte {
	switch c {
	case Pause:
		return []byte(tokenPause)
	case Resume:
		return []byte(tokenResume)
	case Terminate:
		return []byte(tokenTerminate)
	case Stop:
		return []byte(tokenStop)
	case Statistics:
		return []byte(tokenStatistics)
	}
	return nil
}

func (c Command) String() string {
	if p := c.Payload(); p != nil {
		return string(p)
	}
	return "UNKNOWN"
}
