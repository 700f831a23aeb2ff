// Package transport provides the byte-stream abstraction a
// session talks through: connect, implicit or upgraded TLS, write,
// close, and the event callbacks the connection raises.
package transport

import "crypto/tls"

// Constants

// Connection states a transport moves through.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// TLS version preferences a session may pin. VersionAny lets the
// library negotiate and arms the session's fallback loop.
const (
	VersionUnknown Version = iota
	VersionAny
	VersionTLS12
	VersionTLS13
)

// Classified error kinds surfaced to jobs.
const (
	ErrOther ErrorKind = iota
	ErrHostNotFound
	ErrConnectionRefused
	ErrRemoteHostClosed
	ErrTimeout
	ErrTLSHandshake
)

// Structs

// State represents the connection state of a transport.
type State int

// Version names a TLS protocol version preference.
type Version int

// ErrorKind is the coarse classification of a transport failure.
type ErrorKind int

// Interfaces

// Handler receives the events a transport raises. All callbacks
// fire from transport-owned goroutines; receivers hop into their
// own execution context before touching state.
type Handler interface {

	// TransportConnected fires once the connection is established.
	// For an implicit TLS connect this is after the handshake.
	TransportConnected()

	// TransportData delivers received bytes. The slice is owned by
	// the receiver.
	TransportData(p []byte)

	// TransportBytesWritten fires after a write reached the socket.
	TransportBytesWritten(n int)

	// TransportEncrypted fires when a TLS handshake completed.
	// verifyErrs carries the certificate verification errors that
	// were collected instead of failing the handshake.
	TransportEncrypted(state tls.ConnectionState, verifyErrs []error)

	// TransportError reports a classified failure.
	TransportError(kind ErrorKind, err error)

	// TransportDisconnected fires once the connection is gone, on
	// every path: remote close, local close, abort, failed dial.
	TransportDisconnected()

	// TransportStateChanged reports connection state transitions.
	TransportStateChanged(s State)
}

// Transport is a bidirectional byte stream with TLS upgrade
// capability, owned exclusively by one session.
type Transport interface {

	// SetHandler installs the event receiver. Must be called
	// before Connect.
	SetHandler(h Handler)

	// Connect establishes a plaintext connection.
	Connect()

	// ConnectTLS establishes a connection that is TLS from the
	// first byte.
	ConnectTLS()

	// StartClientEncryption upgrades the established plaintext
	// connection via a TLS handshake (STARTTLS).
	StartClientEncryption()

	// SetTLSVersion pins the protocol version for the next
	// handshake.
	SetTLSVersion(v Version)

	// Write sends bytes in call order.
	Write(p []byte)

	// Close shuts the connection down in an orderly fashion.
	Close()

	// Abort tears the connection down immediately, nothing is
	// flushed.
	Abort()

	// State returns the current connection state.
	State() State
}

// Functions

// String returns a readable name for a connection state.
func (s State) String() string {

	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	}

	return "Disconnected"
}

// String returns a readable name for an error kind.
func (k ErrorKind) String() string {

	switch k {
	case ErrHostNotFound:
		return "HostNotFound"
	case ErrConnectionRefused:
		return "ConnectionRefused"
	case ErrRemoteHostClosed:
		return "RemoteHostClosed"
	case ErrTimeout:
		return "Timeout"
	case ErrTLSHandshake:
		return "TlsHandshake"
	}

	return "Other"
}

// String returns a readable name for a TLS version preference.
func (v Version) String() string {

	switch v {
	case VersionAny:
		return "Any"
	case VersionTLS12:
		return "TLSv1.2"
	case VersionTLS13:
		return "TLSv1.3"
	}

	return "Unknown"
}
