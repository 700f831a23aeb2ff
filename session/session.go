// Package session implements the IMAP client session engine: one
// connection, a FIFO of command jobs serialized onto it, and the
// lifecycle state machine driven by the parsed server responses.
//
// All session state is touched from exactly one goroutine, the
// session's event loop. Public entry points and transport events
// post into that loop instead of locking individual fields.
package session

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/go-pluto/courier/config"
	"github.com/go-pluto/courier/imap"
	"github.com/go-pluto/courier/parser"
	"github.com/go-pluto/courier/transport"
	"github.com/go-pluto/courier/utf7"
)

// Constants

// Bits of the fallback bitmask recording which TLS versions a
// negotiation with VersionAny has already attempted.
const (
	triedTLS13 = 1 << iota
	triedTLS12
)

// defaultTimeout is the inactivity watchdog interval a session
// starts out with.
const defaultTimeout = 30 * time.Second

// Structs

// Events bundles the callbacks a session raises. All of them fire
// from the session's event loop; they must not block. Unset
// callbacks are skipped.
type Events struct {
	StateChanged                func(newState imap.State, oldState imap.State)
	JobQueueSizeChanged         func(size int)
	ConnectionFailed            func()
	SSLErrors                   func(errs []error)
	EncryptionNegotiationResult func(ok bool, version transport.Version)
}

// Session owns one connection to an IMAP server. It is single-use:
// once terminally disconnected it is shut down, not reconnected to
// a different endpoint.
type Session struct {
	logger  log.Logger
	metrics *Metrics
	events  Events
	wireLog *wireLogger

	host string
	port uint16

	calls    chan func()
	deferred []func()
	quit     chan struct{}
	quitOnce sync.Once

	// Snapshot fields the facade reads from outside the loop.
	mu             sync.RWMutex
	state          imap.State
	greeting       []byte
	currentMailBox []byte
	queueSize      int
	timerInterval  time.Duration

	// Everything below is owned by the event loop.
	tr                transport.Transport
	stream            *parser.Parser
	queue             jobQueue
	currentJob        Job
	jobRunning        bool
	isSocketConnected bool

	tagCount        uint64
	authTag         []byte
	selectTag       []byte
	closeTag        []byte
	upcomingMailBox []byte

	dataQueue [][]byte

	socketTimer *time.Timer
	timerGen    int

	implicitTLS           bool
	advertisedVersion     transport.Version
	negotiatedVersion     transport.Version
	triedVersions         uint
	doTLSFallback         bool
	sslRetryPending       bool
	plainReconnectPending bool
	encryptedMode         bool
	ignoredCertErrors     []string
}

// Functions

// Init creates a session talking to the server named in the
// config over its own TCP transport and starts connecting.
func Init(logger log.Logger, m *Metrics, conf *config.Config, events Events) (*Session, error) {

	tlsConf, err := transport.NewClientTLSConfig(conf.TLS.ServerName, conf.TLS.RootCertLoc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build client TLS config")
	}

	tr := transport.NewTCP(
		log.With(logger, "component", "transport"),
		conf.Session.Host, conf.Session.Port,
		tlsConf,
	)

	return InitWithTransport(logger, m, conf, events, tr), nil
}

// InitWithTransport creates a session over a caller-supplied
// transport and starts connecting through it.
func InitWithTransport(logger log.Logger, m *Metrics, conf *config.Config, events Events, tr transport.Transport) *Session {

	if m == nil {
		m = NewNopMetrics()
	}

	s := &Session{
		logger:        logger,
		metrics:       m,
		events:        events,
		host:          conf.Session.Host,
		port:          conf.Session.Port,
		calls:         make(chan func(), 128),
		quit:          make(chan struct{}),
		state:         imap.StateDisconnected,
		timerInterval: time.Duration(conf.Session.Timeout) * time.Second,
		tr:            tr,
		stream:        parser.New(),
		implicitTLS:   conf.Session.ImplicitTLS,
	}

	if conf.Session.Timeout == 0 {
		s.timerInterval = defaultTimeout
	}

	// The wire log is switched on through the environment so it
	// stays out of checked-in configs.
	if env := config.LoadEnv(); env.WireLogFile != "" {

		wl, err := newWireLogger(env.WireLogFile)
		if err != nil {
			level.Warn(logger).Log("msg", "failed to open wire log, continuing without", "err", err)
		} else {
			s.wireLog = wl
		}
	}

	s.tr.SetHandler(s)

	go s.run()

	s.post(func() {
		s.startSocketTimer()
		s.reconnect()
	})

	return s
}

// run is the session's event loop. Deferred invocations queued by
// the running callback execute before the next posted call, which
// keeps parser turns and queue starts ordered without re-entrancy.
func (s *Session) run() {

	for {

		select {

		case <-s.quit:
			if s.wireLog != nil {
				s.wireLog.close()
			}
			return

		case f := <-s.calls:
			f()
			for len(s.deferred) > 0 {
				d := s.deferred[0]
				s.deferred = s.deferred[1:]
				d()
			}
		}
	}
}

// post hops f into the session's event loop from any goroutine.
func (s *Session) post(f func()) {

	select {
	case s.calls <- f:
	case <-s.quit:
	default:
		go func() {
			select {
			case s.calls <- f:
			case <-s.quit:
			}
		}()
	}
}

// invokeLater schedules f onto the next turn of the event loop.
// Only call from loop context.
func (s *Session) invokeLater(f func()) {
	s.deferred = append(s.deferred, f)
}

// Facade

// AddJob appends a job to the queue. It starts once all previously
// queued jobs completed and the greeting has been processed.
func (s *Session) AddJob(j Job) {
	s.post(func() { s.addJob(j) })
}

// RemoveJob withdraws an externally destroyed job. Queued jobs are
// silently dropped; a current job is detached without disturbing
// the connection.
func (s *Session) RemoveJob(j Job) {
	s.post(func() { s.removeJob(j) })
}

// Close shuts the connection down. Nothing is drained: every
// queued job receives ConnectionLost once the socket is gone.
func (s *Session) Close() {
	s.post(func() { s.closeSocket() })
}

// Shutdown terminates the session for good: pending jobs are
// failed over, the transport is aborted and the event loop exits.
func (s *Session) Shutdown() {
	s.post(func() {
		s.stopSocketTimer()
		s.clearJobQueue()
		s.tr.Abort()
		s.quitOnce.Do(func() { close(s.quit) })
	})
}

// StartTLS begins TLS negotiation on the established connection.
// Passing VersionAny arms the version fallback loop.
func (s *Session) StartTLS(v transport.Version) {
	s.post(func() { s.startSsl(v) })
}

// SSLErrorHandlerResponse answers a previous SSLErrors event:
// accepting confirms the encrypted connection, rejecting tears it
// down and reconnects unencrypted.
func (s *Session) SSLErrorHandlerResponse(accept bool) {
	s.post(func() { s.sslErrorHandlerResponse(accept) })
}

// IgnoreErrors pre-accepts certificate verification failures whose
// messages match one of the given strings.
func (s *Session) IgnoreErrors(errs []string) {
	s.post(func() {
		s.ignoredCertErrors = append(s.ignoredCertErrors, errs...)
	})
}

// SetTimeout reconfigures the inactivity watchdog. Negative values
// disable it.
func (s *Session) SetTimeout(seconds int) {
	s.post(func() { s.setSocketTimeout(time.Duration(seconds) * time.Second) })
}

// Timeout returns the current watchdog interval in seconds.
func (s *Session) Timeout() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.timerInterval / time.Second)
}

// State returns the current lifecycle state.
func (s *Session) State() imap.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ServerGreeting returns the text of the greeting line, without
// its status parts.
func (s *Session) ServerGreeting() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.greeting...)
}

// SelectedMailbox returns the decoded name of the selected
// mailbox, empty unless the state is Selected.
func (s *Session) SelectedMailbox() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.currentMailBox)
}

// JobQueueSize returns the number of queued jobs plus the current
// one.
func (s *Session) JobQueueSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queueSize
}

// Transport events. All of them hop into the event loop.

func (s *Session) TransportConnected() {
	s.post(s.socketConnected)
}

func (s *Session) TransportData(p []byte) {
	s.post(func() {
		s.stream.Feed(p)
		s.socketActivity()
		s.readMessage()
	})
}

func (s *Session) TransportBytesWritten(n int) {
	s.post(s.socketActivity)
}

func (s *Session) TransportEncrypted(state tls.ConnectionState, verifyErrs []error) {
	s.post(func() { s.sslConnected(state, verifyErrs) })
}

func (s *Session) TransportError(kind transport.ErrorKind, err error) {
	s.post(func() { s.socketError(kind, err) })
}

func (s *Session) TransportDisconnected() {
	s.post(s.socketDisconnected)
}

func (s *Session) TransportStateChanged(st transport.State) {
	level.Debug(s.logger).Log("msg", "transport state changed", "state", st)
}

// Queue handling, loop context.

func (s *Session) addJob(j Job) {
	s.queue.enqueue(j)
	s.emitQueueSize()
	s.startNext()
}

func (s *Session) removeJob(j Job) {
	s.queue.remove(j)
	if s.currentJob == j {
		s.currentJob = nil
	}
	s.emitQueueSize()
}

func (s *Session) startNext() {
	s.invokeLater(s.doStartNext)
}

func (s *Session) doStartNext() {

	// Jobs wait until the transport is connected and the greeting
	// moved the state out of Disconnected. The auth job runs from
	// NotAuthenticated like any other head of queue.
	if s.queue.length() == 0 || s.jobRunning || !s.isSocketConnected ||
		s.sessionState() == imap.StateDisconnected {
		return
	}

	s.restartSocketTimer()
	s.jobRunning = true

	s.currentJob = s.queue.dequeue()
	s.currentJob.Start(s)
}

// Done implements Commander. The current job signals completion.
func (s *Session) Done(err error) {

	s.stopSocketTimer()

	if err != nil {
		level.Debug(s.logger).Log("msg", "job finished with error", "err", err)
	}

	s.jobRunning = false
	s.currentJob = nil
	s.emitQueueSize()
	s.startNext()
}

// SendCommand implements Commander: it tags the command, tracks
// tags that drive state transitions and queues the line for
// writing.
func (s *Session) SendCommand(command []byte, args []byte) []byte {

	s.tagCount++
	tag := []byte(fmt.Sprintf("A%06d", s.tagCount))

	payload := make([]byte, 0, len(tag)+len(command)+len(args)+2)
	payload = append(payload, tag...)
	payload = append(payload, ' ')
	payload = append(payload, command...)
	if len(args) > 0 {
		payload = append(payload, ' ')
		payload = append(payload, args...)
	}

	s.sendData(payload)

	switch {
	case bytes.Equal(command, []byte("LOGIN")) || bytes.Equal(command, []byte("AUTHENTICATE")):
		s.authTag = tag
	case bytes.Equal(command, []byte("SELECT")) || bytes.Equal(command, []byte("EXAMINE")):
		s.selectTag = tag
		s.upcomingMailBox = decodeMailboxArg(args)
	case bytes.Equal(command, []byte("CLOSE")):
		s.closeTag = tag
	}

	s.metrics.Commands.Add(1)

	return tag
}

// decodeMailboxArg extracts the quoted mailbox name from SELECT or
// EXAMINE arguments and decodes its modified UTF-7 form.
func decodeMailboxArg(args []byte) []byte {

	name := args
	if len(name) > 0 {
		name = name[1:]
	}
	if i := bytes.IndexByte(name, '"'); i >= 0 {
		name = name[:i]
	}

	decoded, err := utf7.Decode(string(name))
	if err != nil {
		return append([]byte(nil), name...)
	}
	return []byte(decoded)
}

// sendData queues one line for writing. The queue drains on its
// own event turn so a burst of sends from one call stack coalesces
// into one turn of transport writes.
func (s *Session) sendData(data []byte) {

	s.restartSocketTimer()

	if s.wireLog != nil && s.loggableState() {
		s.wireLog.dataSent(data)
	}

	line := make([]byte, 0, len(data)+2)
	line = append(line, data...)
	line = append(line, '\r', '\n')

	s.dataQueue = append(s.dataQueue, line)
	s.invokeLater(s.writeDataQueue)
}

func (s *Session) writeDataQueue() {
	for len(s.dataQueue) > 0 {
		d := s.dataQueue[0]
		s.dataQueue = s.dataQueue[1:]
		s.tr.Write(d)
	}
}

// Parsing, loop context.

// readMessage drives the parser over the buffered bytes. One
// complete response is tokenized into a Message; an incomplete one
// rolls the parser back to wait for more data.
func (s *Session) readMessage() {

	if s.stream.AvailableDataSize() == 0 {
		return
	}

	var msg imap.Message
	payload := &msg.Content

	if !s.stream.Parse() {
		// No CRLF buffered yet.
		return
	}
	s.stream.SaveState()

loop:
	for !s.stream.AtCommandEnd() {

		switch {

		case s.stream.InsufficientData():
			break loop

		case s.stream.HasString():
			str := s.stream.ReadString()
			if !s.stream.InsufficientData() {
				if bytes.Equal(str, []byte("NIL")) {
					*payload = append(*payload, imap.NewListPart(nil))
				} else {
					*payload = append(*payload, imap.NewTextPart(str))
				}
			}

		case s.stream.HasList():
			list := s.stream.ReadParenthesizedList()
			if !s.stream.InsufficientData() {
				*payload = append(*payload, imap.NewListPart(list))
			}

		case s.stream.HasResponseCode():
			payload = &msg.ResponseCode

		case s.stream.AtResponseCodeEnd():
			payload = &msg.Content

		case s.stream.HasLiteral():
			literal := []byte{}
			for !s.stream.AtLiteralEnd() {
				part := s.stream.ReadLiteralPart()
				if s.stream.InsufficientData() {
					break
				}
				literal = append(literal, part...)
			}
			if !s.stream.InsufficientData() {
				*payload = append(*payload, imap.NewTextPart(literal))
			}

		default:
			if !s.stream.InsufficientData() {
				// None of the token shapes matched although data
				// is buffered. The stream cannot be trusted any
				// longer.
				level.Warn(s.logger).Log(
					"msg", "inconsistent data in stream, aborting the connection",
					"data", fmt.Sprintf("%q", s.stream.Data()),
				)
				s.tr.Abort()
				return
			}
			break loop
		}
	}

	if s.stream.InsufficientData() {
		s.stream.RestoreState()
		return
	}

	s.stream.TrimBuffer()
	s.responseReceived(msg)

	if s.stream.AvailableDataSize() >= 1 {
		s.invokeLater(s.readMessage)
	}
}

// responseReceived advances the state machine and routes the
// response to the current job.
func (s *Session) responseReceived(msg imap.Message) {

	s.metrics.Responses.Add(1)

	if s.wireLog != nil && s.loggableState() {
		s.wireLog.dataReceived([]byte(msg.String()))
	}

	tag := msg.Tag()
	code := msg.Code()

	// BYE arrives as part of a LOGOUT sequence or before the
	// server closes the connection after an error. Either way the
	// server closes the socket next, so there is nothing to do and
	// nothing to hand to the current job.
	if bytes.Equal(code, []byte("BYE")) || s.responseCodeIsBye(msg) {
		level.Debug(s.logger).Log(
			"msg", "received BYE",
			"text", msg.StripStatus(2).String(),
		)
		return
	}

	switch s.sessionState() {

	case imap.StateDisconnected:

		s.stopSocketTimer()

		if bytes.Equal(code, []byte("OK")) {
			s.setGreeting(msg.StripStatus(2))
			s.setState(imap.StateNotAuthenticated)
			s.startNext()
		} else if bytes.Equal(code, []byte("PREAUTH")) {
			s.setGreeting(msg.StripStatus(2))
			s.setState(imap.StateAuthenticated)
			s.startNext()
		} else {
			// We have been rejected.
			s.closeSocket()
		}
		return

	case imap.StateNotAuthenticated:
		if bytes.Equal(code, []byte("OK")) && s.tagMatches(tag, s.authTag) {
			s.setState(imap.StateAuthenticated)
		}

	case imap.StateAuthenticated:
		if bytes.Equal(code, []byte("OK")) && s.tagMatches(tag, s.selectTag) {
			s.setState(imap.StateSelected)
			s.setMailbox(s.upcomingMailBox)
		}

	case imap.StateSelected:
		if (bytes.Equal(code, []byte("OK")) && s.tagMatches(tag, s.closeTag)) ||
			(!bytes.Equal(code, []byte("OK")) && s.tagMatches(tag, s.selectTag)) {
			s.setState(imap.StateAuthenticated)
			s.setMailbox(nil)
		} else if bytes.Equal(code, []byte("OK")) && s.tagMatches(tag, s.selectTag) {
			// Re-selecting while selected refreshes the mailbox.
			s.setMailbox(s.upcomingMailBox)
		}
	}

	// Tracked tags are cleared whenever they complete, regardless
	// of the transition taken.
	if s.tagMatches(tag, s.authTag) {
		s.authTag = nil
	}
	if s.tagMatches(tag, s.selectTag) {
		s.selectTag = nil
	}
	if s.tagMatches(tag, s.closeTag) {
		s.closeTag = nil
	}

	if s.currentJob != nil {
		s.restartSocketTimer()
		s.currentJob.HandleResponse(msg)
	} else {
		level.Warn(s.logger).Log(
			"msg", "a message was received from the server with no job to handle it",
			"response", msg.String(),
		)
	}
}

func (s *Session) responseCodeIsBye(msg imap.Message) bool {
	return len(msg.ResponseCode) > 0 && !msg.ResponseCode[0].IsList &&
		bytes.Equal(msg.ResponseCode[0].Text, []byte("BYE"))
}

func (s *Session) tagMatches(tag []byte, tracked []byte) bool {
	return len(tracked) > 0 && bytes.Equal(tag, tracked)
}

// Socket lifecycle, loop context.

func (s *Session) socketConnected() {

	level.Debug(s.logger).Log("msg", "socket connected")
	s.isSocketConnected = true

	if s.sslRetryPending {
		s.sslRetryPending = false
		s.startSsl(transport.VersionAny)
	}

	if s.plainReconnectPending {
		s.plainReconnectPending = false
		s.emitEncryptionResult(false, transport.VersionUnknown)
	}

	s.startNext()
}

func (s *Session) socketDisconnected() {

	level.Debug(s.logger).Log("msg", "socket disconnected", "was_connected", s.isSocketConnected)

	if s.doTLSFallback {
		// A handshake attempt failed with versions left to try.
		// Reconnect and pick the next one instead of surfacing the
		// disconnect.
		s.metrics.TLSRetries.Add(1)
		s.isSocketConnected = false
		s.sslRetryPending = true
		s.invokeLater(s.reconnect)
		return
	}

	if s.plainReconnectPending {
		// The user rejected the negotiated encryption, go back to
		// an unencrypted connection.
		s.isSocketConnected = false
		s.invokeLater(s.reconnect)
		return
	}

	s.stopSocketTimer()

	if s.wireLog != nil && s.loggableState() {
		s.wireLog.disconnectionOccurred()
	}

	if s.sessionState() != imap.StateDisconnected {
		s.setState(imap.StateDisconnected)
	} else {
		s.emitConnectionFailed()
	}

	s.isSocketConnected = false

	s.clearJobQueue()
}

func (s *Session) socketActivity() {
	s.restartSocketTimer()
}

func (s *Session) socketError(kind transport.ErrorKind, err error) {

	level.Debug(s.logger).Log("msg", "socket error", "kind", kind.String(), "err", err)

	if s.doTLSFallback {
		// Failure of a fallback handshake attempt, the disconnect
		// handler takes care of retrying.
		return
	}

	if kind == transport.ErrTimeout {
		s.metrics.Timeouts.Add(1)
	}

	s.stopSocketTimer()

	if s.currentJob != nil {
		s.currentJob.SocketError(kind)
	} else if s.queue.length() > 0 {
		s.currentJob = s.queue.dequeue()
		s.currentJob.SocketError(kind)
	}

	if s.isSocketConnected {
		s.closeSocket()
	}
}

func (s *Session) clearJobQueue() {

	s.metrics.ConnectionLosses.Add(1)

	if s.currentJob != nil {
		s.currentJob.ConnectionLost()
		s.currentJob = nil
		s.jobRunning = false
	}

	for _, j := range s.queue.drain() {
		j.ConnectionLost()
	}

	s.jobRunning = false
	s.emitQueueSize()
}

func (s *Session) closeSocket() {
	s.tr.Close()
}

func (s *Session) reconnect() {

	if st := s.tr.State(); st == transport.StateConnected || st == transport.StateConnecting {
		return
	}

	level.Debug(s.logger).Log("msg", "connecting", "host", s.host, "port", s.port)

	if s.implicitTLS {
		s.tr.ConnectTLS()
	} else {
		s.tr.Connect()
	}
}

// TLS negotiation, loop context.

func (s *Session) startSsl(v transport.Version) {

	if v == transport.VersionAny {

		s.doTLSFallback = true

		if s.advertisedVersion == transport.VersionUnknown {
			s.advertisedVersion = transport.VersionAny
		} else if s.triedVersions&triedTLS13 == 0 {
			s.triedVersions |= triedTLS13
			s.advertisedVersion = transport.VersionTLS13
		} else if s.triedVersions&triedTLS12 == 0 {
			s.triedVersions |= triedTLS12
			s.advertisedVersion = transport.VersionTLS12
			// Last version in the preference list. A further
			// failure surfaces to the user.
			s.doTLSFallback = false
		}
	} else {
		s.advertisedVersion = v
	}

	level.Debug(s.logger).Log("msg", "starting client encryption", "version", s.advertisedVersion)

	s.tr.SetTLSVersion(s.advertisedVersion)
	s.tr.StartClientEncryption()
}

func (s *Session) sslConnected(state tls.ConnectionState, verifyErrs []error) {

	remaining := verifyErrs[:0:0]
	for _, err := range verifyErrs {
		if !s.certErrIgnored(err) {
			remaining = append(remaining, err)
		}
	}

	s.negotiatedVersion = versionFromState(state)

	if len(remaining) > 0 || state.CipherSuite == 0 {

		level.Debug(s.logger).Log(
			"msg", "TLS handshake completed with unresolved errors",
			"errors", len(remaining),
		)

		s.emitSSLErrors(remaining)
		return
	}

	level.Debug(s.logger).Log("msg", "TLS negotiation done", "version", s.negotiatedVersion)

	s.doTLSFallback = false
	s.encryptedMode = true
	s.emitEncryptionResult(true, s.negotiatedVersion)
}

func (s *Session) sslErrorHandlerResponse(accept bool) {

	if accept {
		s.encryptedMode = true
		s.doTLSFallback = false
		s.emitEncryptionResult(true, s.negotiatedVersion)
		return
	}

	// Reconnect in unencrypted mode so new commands can be issued.
	s.encryptedMode = false
	s.doTLSFallback = false
	s.plainReconnectPending = true
	s.tr.Close()
}

func (s *Session) certErrIgnored(err error) bool {
	for _, ignored := range s.ignoredCertErrors {
		if err.Error() == ignored {
			return true
		}
	}
	return false
}

func versionFromState(state tls.ConnectionState) transport.Version {

	switch state.Version {
	case tls.VersionTLS13:
		return transport.VersionTLS13
	case tls.VersionTLS12:
		return transport.VersionTLS12
	}

	return transport.VersionUnknown
}

// Inactivity watchdog, loop context.

func (s *Session) setSocketTimeout(d time.Duration) {

	active := s.socketTimer != nil
	if active {
		s.stopSocketTimer()
	}

	s.mu.Lock()
	s.timerInterval = d
	s.mu.Unlock()

	if active {
		s.startSocketTimer()
	}
}

func (s *Session) startSocketTimer() {

	s.mu.RLock()
	interval := s.timerInterval
	s.mu.RUnlock()

	if interval < 0 {
		return
	}

	s.timerGen++
	gen := s.timerGen

	s.socketTimer = time.AfterFunc(interval, func() {
		s.post(func() { s.onSocketTimeout(gen) })
	})
}

func (s *Session) stopSocketTimer() {

	s.timerGen++

	if s.socketTimer != nil {
		s.socketTimer.Stop()
		s.socketTimer = nil
	}
}

func (s *Session) restartSocketTimer() {
	s.stopSocketTimer()
	s.startSocketTimer()
}

func (s *Session) onSocketTimeout(gen int) {

	// A stale expiry raced a restart, ignore it.
	if gen != s.timerGen {
		return
	}

	level.Warn(s.logger).Log("msg", "no activity within the timeout, aborting the connection")
	s.metrics.Timeouts.Add(1)
	s.tr.Abort()
}

// Snapshot handling.

func (s *Session) sessionState() imap.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) loggableState() bool {
	return s.sessionState() != imap.StateDisconnected
}

func (s *Session) setState(st imap.State) {

	s.mu.Lock()
	old := s.state
	if st == old {
		s.mu.Unlock()
		return
	}
	s.state = st
	if st != imap.StateSelected {
		s.currentMailBox = nil
	}
	s.mu.Unlock()

	level.Debug(s.logger).Log("msg", "state changed", "new", st, "old", old)
	s.emitStateChanged(st, old)
}

func (s *Session) setMailbox(name []byte) {
	s.mu.Lock()
	s.currentMailBox = append([]byte(nil), name...)
	s.mu.Unlock()
}

func (s *Session) setGreeting(stripped imap.Message) {
	s.mu.Lock()
	s.greeting = []byte(strings.TrimSpace(stripped.String()))
	s.mu.Unlock()
}

// Event emission, loop context.

func (s *Session) emitQueueSize() {

	size := s.queue.length()
	if s.currentJob != nil {
		size++
	}

	s.mu.Lock()
	s.queueSize = size
	s.mu.Unlock()

	if s.events.JobQueueSizeChanged != nil {
		s.events.JobQueueSizeChanged(size)
	}
}

func (s *Session) emitStateChanged(newState imap.State, oldState imap.State) {
	if s.events.StateChanged != nil {
		s.events.StateChanged(newState, oldState)
	}
}

func (s *Session) emitConnectionFailed() {
	if s.events.ConnectionFailed != nil {
		s.events.ConnectionFailed()
	}
}

func (s *Session) emitSSLErrors(errs []error) {
	if s.events.SSLErrors != nil {
		s.events.SSLErrors(errs)
	}
}

func (s *Session) emitEncryptionResult(ok bool, v transport.Version) {
	if s.events.EncryptionNegotiationResult != nil {
		s.events.EncryptionNegotiationResult(ok, v)
	}
}
