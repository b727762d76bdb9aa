// Package transport performs one plaintext HTTP/1.0 round trip per call over a
// raw TCP socket. It never retries: the caller owns backoff.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"
)

// Outcome classifies a single fetch attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDNSFailure
	OutcomeSocketFailure
	OutcomeConnectFailure
	OutcomeTimeoutConfigFailure
	OutcomeSendFailure
	OutcomeReceiveFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDNSFailure:
		return "dns-failure"
	case OutcomeSocketFailure:
		return "socket-failure"
	case OutcomeConnectFailure:
		return "connect-failure"
	case OutcomeTimeoutConfigFailure:
		return "timeout-config-failure"
	case OutcomeSendFailure:
		return "send-failure"
	case OutcomeReceiveFailure:
		return "receive-failure"
	default:
		return "unknown(" + strconv.Itoa(int(o)) + ")"
	}
}

// Phase is reported to the caller as the attempt progresses.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseSending
	PhaseReceiving
)

// Error carries the failed step of an attempt.
type Error struct {
	Outcome Outcome
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Outcome, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Attempt is the result of one round trip. Raw aliases the client's receive
// buffer and is only valid until the next Fetch.
type Attempt struct {
	Raw     []byte
	N       int
	Outcome Outcome

	// TimedOut is set when the receive deadline ended a read that had already
	// got data. The response may be incomplete.
	TimedOut bool
	// BufferFull is set when the response filled the whole buffer. Anything
	// past it was not read.
	BufferFull bool
}

// Config is the fixed request target and receive limits.
type Config struct {
	Host           string
	Port           int
	Path           string
	UserAgent      string
	BufferSize     int
	ReceiveTimeout time.Duration
	DialTimeout    time.Duration
}

// Resolver is the subset of *net.Resolver used for name lookup.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DialFunc opens a stream connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Option customizes a Client.
type Option func(*Client)

// WithResolver replaces the system resolver.
func WithResolver(r Resolver) Option {
	return func(c *Client) { c.resolver = r }
}

// WithDialer replaces the TCP dialer.
func WithDialer(d DialFunc) Option {
	return func(c *Client) { c.dial = d }
}

// Client owns the request bytes and the reusable receive buffer. It is not
// safe for concurrent use; the scheduler is its only caller.
type Client struct {
	cfg      Config
	request  []byte
	buf      []byte
	resolver Resolver
	dial     DialFunc
}

// New builds the request once and allocates the receive buffer.
func New(cfg Config, opts ...Option) *Client {
	d := &net.Dialer{Timeout: cfg.DialTimeout}
	c := &Client{
		cfg:      cfg,
		request:  BuildRequest(cfg.Host, cfg.Port, cfg.Path, cfg.UserAgent),
		buf:      make([]byte, cfg.BufferSize),
		resolver: net.DefaultResolver,
		dial:     d.DialContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildRequest renders the literal HTTP/1.0 GET sent on every attempt.
func BuildRequest(host string, port int, path, userAgent string) []byte {
	return []byte("GET " + path + " HTTP/1.0\r\n" +
		"Host: " + host + ":" + strconv.Itoa(port) + "\r\n" +
		"User-Agent: " + userAgent + "\r\n" +
		"\r\n")
}

// Fetch resolves, connects, sends the request and reads until EOF, the
// receive timeout, or a full buffer. The socket is closed before returning on
// every path. phase may be nil.
func (c *Client) Fetch(ctx context.Context, phase func(Phase)) (Attempt, error) {
	report := func(p Phase) {
		if phase != nil {
			phase(p)
		}
	}

	report(PhaseConnecting)
	addrs, err := c.resolver.LookupHost(ctx, c.cfg.Host)
	if err != nil {
		return fail(OutcomeDNSFailure, err)
	}
	if len(addrs) == 0 {
		return fail(OutcomeDNSFailure, fmt.Errorf("no addresses for %q", c.cfg.Host))
	}

	conn, err := c.dial(ctx, "tcp", net.JoinHostPort(addrs[0], strconv.Itoa(c.cfg.Port)))
	if err != nil {
		return fail(classifyDialError(err), err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReceiveTimeout)); err != nil {
		return fail(OutcomeTimeoutConfigFailure, err)
	}

	report(PhaseSending)
	if _, err := conn.Write(c.request); err != nil {
		return fail(OutcomeSendFailure, err)
	}

	report(PhaseReceiving)
	// The buffer is zeroed, not just overwritten, so a short response can never
	// carry trailing bytes from the previous one.
	clear(c.buf)
	n, timedOut, err := readAll(conn, c.buf)
	if err != nil {
		return fail(OutcomeReceiveFailure, err)
	}
	return Attempt{
		Raw:        c.buf[:n],
		N:          n,
		Outcome:    OutcomeSuccess,
		TimedOut:   timedOut,
		BufferFull: n == len(c.buf),
	}, nil
}

func readAll(conn net.Conn, buf []byte) (n int, timedOut bool, err error) {
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return n, false, nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() && n > 0 {
			// server kept the connection open; use what arrived
			return n, true, nil
		}
		return n, false, err
	}
	return n, false, nil
}

// classifyDialError separates socket allocation failures from connect failures.
func classifyDialError(err error) Outcome {
	var se *os.SyscallError
	if errors.As(err, &se) && se.Syscall == "socket" {
		return OutcomeSocketFailure
	}
	return OutcomeConnectFailure
}

func fail(o Outcome, err error) (Attempt, error) {
	return Attempt{Outcome: o}, &Error{Outcome: o, Err: err}
}
