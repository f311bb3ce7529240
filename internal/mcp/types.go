package mcp

import "fmt"

// Transport selects the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio spawns a subprocess and communicates over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// ToolStats summarises the recent runtime behaviour of one tool, computed
// over a rolling window of the latest calls.
type ToolStats struct {
	Name      string
	Server    string
	CallCount int
	ErrorRate float64
	P50Ms     int64
	P99Ms     int64
	Denied    int
}

func (s ToolStats) String() string {
	return fmt.Sprintf("%s: %d calls, p50=%dms p99=%dms, errors=%.0f%%, denied=%d",
		s.Name, s.CallCount, s.P50Ms, s.P99Ms, s.ErrorRate*100, s.Denied)
}
