package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"crypto/tls"
	"crypto/x509"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Structs

// TCP is the Transport implementation over a net.Conn, optionally
// wrapped in crypto/tls either from the first byte or after a
// STARTTLS upgrade. Events fire from internally owned goroutines.
type TCP struct {
	logger      log.Logger
	addr        string
	dialTimeout time.Duration
	baseTLS     *tls.Config

	mu            sync.Mutex
	handler       Handler
	conn          net.Conn
	state         State
	version       Version
	encrypted     bool
	closedLocally bool
	readGen       int
	verifyErrs    []error
}

// Functions

// NewTCP creates a transport for one (host, port) endpoint. The
// TLS config is used for implicit TLS connects and STARTTLS
// upgrades; passing nil selects library defaults with the host as
// server name.
func NewTCP(logger log.Logger, host string, port uint16, tlsConf *tls.Config) *TCP {

	if tlsConf == nil {
		tlsConf = &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &TCP{
		logger:      logger,
		addr:        fmt.Sprintf("%s:%d", host, port),
		dialTimeout: 30 * time.Second,
		baseTLS:     tlsConf,
	}
}

// SetHandler installs the event receiver.
func (t *TCP) SetHandler(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// SetTLSVersion pins the protocol version for the next handshake.
func (t *TCP) SetTLSVersion(v Version) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version = v
}

// State returns the current connection state.
func (t *TCP) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect establishes a plaintext connection in the background.
func (t *TCP) Connect() {
	t.dial(false)
}

// ConnectTLS establishes a connection that is encrypted from the
// first byte.
func (t *TCP) ConnectTLS() {
	t.dial(true)
}

func (t *TCP) dial(implicitTLS bool) {

	t.mu.Lock()
	if t.state != StateDisconnected || t.handler == nil {
		t.mu.Unlock()
		return
	}
	t.state = StateConnecting
	t.closedLocally = false
	t.encrypted = false
	h := t.handler
	t.mu.Unlock()

	h.TransportStateChanged(StateConnecting)

	go func() {

		conn, err := net.DialTimeout("tcp", t.addr, t.dialTimeout)
		if err != nil {

			level.Debug(t.logger).Log(
				"msg", "failed to connect",
				"addr", t.addr,
				"err", err,
			)

			t.mu.Lock()
			t.state = StateDisconnected
			t.mu.Unlock()

			h.TransportError(Classify(err), err)
			h.TransportStateChanged(StateDisconnected)
			h.TransportDisconnected()
			return
		}

		var tlsConn *tls.Conn
		if implicitTLS {

			tlsConn = tls.Client(conn, t.handshakeConfig())
			if err := tlsConn.Handshake(); err != nil {

				conn.Close()

				t.mu.Lock()
				t.state = StateDisconnected
				t.mu.Unlock()

				h.TransportError(ErrTLSHandshake, err)
				h.TransportStateChanged(StateDisconnected)
				h.TransportDisconnected()
				return
			}
			conn = tlsConn
		}

		t.mu.Lock()
		t.conn = conn
		t.state = StateConnected
		t.encrypted = implicitTLS
		t.readGen++
		gen := t.readGen
		t.mu.Unlock()

		h.TransportStateChanged(StateConnected)
		if tlsConn != nil {
			h.TransportEncrypted(tlsConn.ConnectionState(), t.takeVerifyErrs())
		}
		h.TransportConnected()

		go t.readLoop(conn, gen, h)
	}()
}

// readLoop delivers received bytes until the connection dies. A
// reader whose generation fell behind exits silently, its
// connection has been handed over to a TLS upgrade.
func (t *TCP) readLoop(conn net.Conn, gen int, h Handler) {

	buf := make([]byte, 4096)

	for {

		n, err := conn.Read(buf)
		if n > 0 {
			p := make([]byte, n)
			copy(p, buf[:n])
			h.TransportData(p)
		}

		if err != nil {

			t.mu.Lock()
			if gen != t.readGen {
				t.mu.Unlock()
				return
			}
			closedLocally := t.closedLocally
			t.conn = nil
			t.state = StateDisconnected
			t.mu.Unlock()

			conn.Close()

			if !closedLocally {

				kind := Classify(err)
				if errors.Is(err, io.EOF) {
					kind = ErrRemoteHostClosed
				}

				h.TransportError(kind, err)
			}

			h.TransportStateChanged(StateDisconnected)
			h.TransportDisconnected()
			return
		}
	}
}

// StartClientEncryption upgrades the established plaintext
// connection via a TLS handshake.
func (t *TCP) StartClientEncryption() {

	t.mu.Lock()
	if t.conn == nil || t.state != StateConnected || t.encrypted {
		t.mu.Unlock()
		level.Warn(t.logger).Log("msg", "encryption requested but the connection is not ready for it")
		return
	}
	t.readGen++
	conn := t.conn
	h := t.handler
	t.mu.Unlock()

	// Kick the plaintext reader out of its blocking read. It sees
	// a stale generation and exits without raising events.
	conn.SetReadDeadline(time.Now())

	go func() {

		conn.SetReadDeadline(time.Time{})

		tlsConn := tls.Client(conn, t.handshakeConfig())
		if err := tlsConn.Handshake(); err != nil {

			level.Debug(t.logger).Log(
				"msg", "TLS handshake failed",
				"err", err,
			)

			h.TransportError(ErrTLSHandshake, err)
			t.Close()

			// The reader that would normally notice the closed
			// connection is gone, report the disconnect here.
			t.mu.Lock()
			t.conn = nil
			t.state = StateDisconnected
			t.mu.Unlock()

			h.TransportStateChanged(StateDisconnected)
			h.TransportDisconnected()
			return
		}

		t.mu.Lock()
		t.conn = tlsConn
		t.encrypted = true
		t.readGen++
		gen := t.readGen
		t.mu.Unlock()

		h.TransportEncrypted(tlsConn.ConnectionState(), t.takeVerifyErrs())

		go t.readLoop(tlsConn, gen, h)
	}()
}

// Write sends bytes in call order.
func (t *TCP) Write(p []byte) {

	t.mu.Lock()
	conn := t.conn
	h := t.handler
	t.mu.Unlock()

	if conn == nil {
		level.Warn(t.logger).Log("msg", "dropping write on disconnected transport", "bytes", len(p))
		return
	}

	n, err := conn.Write(p)
	if err != nil {
		h.TransportError(Classify(err), err)
		t.Close()
		return
	}

	h.TransportBytesWritten(n)
}

// Close shuts the connection down. The read loop notices and
// raises the disconnect events.
func (t *TCP) Close() {

	t.mu.Lock()
	t.closedLocally = true
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Abort tears the connection down immediately without flushing.
func (t *TCP) Abort() {

	t.mu.Lock()
	t.closedLocally = true
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetLinger(0)
	}
	conn.Close()
}

// handshakeConfig clones the base TLS config, applies the pinned
// version and reroutes certificate verification so failures are
// collected instead of aborting the handshake. The session decides
// what to do with them.
func (t *TCP) handshakeConfig() *tls.Config {

	t.mu.Lock()
	version := t.version
	t.mu.Unlock()

	cfg := t.baseTLS.Clone()

	switch version {
	case VersionTLS12:
		cfg.MinVersion = tls.VersionTLS12
		cfg.MaxVersion = tls.VersionTLS12
	case VersionTLS13:
		cfg.MinVersion = tls.VersionTLS13
		cfg.MaxVersion = tls.VersionTLS13
	}

	roots := cfg.RootCAs
	serverName := cfg.ServerName

	cfg.InsecureSkipVerify = true
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {

		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				t.recordVerifyErr(err)
				return nil
			}
			certs = append(certs, cert)
		}

		if len(certs) == 0 {
			t.recordVerifyErr(errors.New("server presented no certificate"))
			return nil
		}

		opts := x509.VerifyOptions{
			Roots:         roots,
			DNSName:       serverName,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}

		if _, err := certs[0].Verify(opts); err != nil {
			t.recordVerifyErr(err)
		}

		return nil
	}

	return cfg
}

func (t *TCP) recordVerifyErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.verifyErrs = append(t.verifyErrs, err)
}

func (t *TCP) takeVerifyErrs() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	errs := t.verifyErrs
	t.verifyErrs = nil
	return errs
}

// Classify maps a network error onto the coarse error kinds jobs
// are told about.
func Classify(err error) ErrorKind {

	if err == nil {
		return ErrOther
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrHostNotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return ErrRemoteHostClosed
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrConnectionRefused
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return ErrTLSHandshake
	}

	return ErrOther
}
