// Package touchppp bridges a Hayes-compatible AT command session to a PPP
// transport. It accepts connections from an emulator's virtual null modem
// (MAME's -bitb socket bitbanger), answers the AT command subset spoken by
// the WebTV OS and Windows CE client firmwares, and once the client dials
// it relays bytes to either a remote TCP peer or a locally spawned PPP
// process.
//
// Example usage:
//
//	srv, err := touchppp.NewServer(&touchppp.Config{
//		Listen:  "127.0.0.1:1122",
//		Connect: "127.0.0.1:2323",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := srv.ListenAndServe(context.Background()); err != nil {
//		log.Fatal(err)
//	}
package touchppp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"
)

var (
	// ErrConfigRequired is returned when a required configuration parameter is missing
	ErrConfigRequired = errors.New("config required")
)

const (
	// DefaultListen is the address served when Config.Listen is empty.
	DefaultListen = "127.0.0.1:1122"
	// DefaultConnect is the PPP target dialed when neither Config.Exec nor
	// Config.Connect is set.
	DefaultConnect = "127.0.0.1:2323"
)

// LevelTrace logs raw byte traffic, one step below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// Config contains the parameters for creating a Server. All fields have
// reasonable defaults; a zero Config serves loopback to loopback.
type Config struct {
	// Listen is the [host:]port the emulator's null modem connects to.
	// A bare port gets the loopback host prepended.
	Listen string
	// Connect is the remote host:port providing PPP. Ignored when Exec is set.
	Connect string
	// Exec is a local PPP command line, split on spaces (first token is the
	// executable). Takes precedence over Connect.
	Exec string
	// ExecPty runs the Exec command on a pseudo-terminal instead of plain
	// pipes, for PPP daemons that insist on a controlling tty.
	ExecPty bool
	// ConnectDelay is the pause between result codes in the Windows CE
	// negotiation sequence (default: one second).
	ConnectDelay time.Duration
	// Logger receives server and session events (default: slog.Default()).
	Logger *slog.Logger
}

// Metrics contains runtime statistics for a Server. All counters are
// cumulative totals since the server was created.
type Metrics struct {
	// NumSessions is the total number of client sessions handled
	NumSessions int
	// ActiveSessions is the number of sessions currently running
	ActiveSessions int
	// NumRelays is the total number of data-mode relays started
	NumRelays int
	// ClientToBackendBytes is the total relayed from the client to PPP
	ClientToBackendBytes int64
	// BackendToClientBytes is the total relayed from PPP to the client
	BackendToClientBytes int64
	// LastConnTime is the timestamp of the last backend connection
	LastConnTime time.Time
}

// Server owns the immutable gateway configuration and spawns one
// independent session per accepted connection. Sessions share nothing
// mutable with each other beyond the metrics counters.
type Server struct {
	cfg     Config
	log     *slog.Logger
	exeName string
	exeArgs []string

	mu      sync.Mutex
	metrics Metrics
}

// NewServer creates a Server from the given configuration, applying
// defaults for any unset field.
//
// Returns ErrConfigRequired if config is nil.
func NewServer(config *Config) (*Server, error) {
	if config == nil {
		return nil, ErrConfigRequired
	}

	cfg := *config
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	cfg.Listen = withDefaultHost(cfg.Listen)
	if cfg.Exec == "" && cfg.Connect == "" {
		cfg.Connect = DefaultConnect
	}
	if cfg.ConnectDelay == 0 {
		cfg.ConnectDelay = time.Second
	}

	s := &Server{cfg: cfg, log: cfg.Logger}
	if cfg.Exec != "" {
		parts := strings.Split(cfg.Exec, " ")
		s.exeName = parts[0]
		s.exeArgs = parts[1:]
	}
	return s, nil
}

// withDefaultHost prepends the loopback host when addr is a bare port.
func withDefaultHost(addr string) string {
	if !strings.Contains(addr, ":") {
		return "127.0.0.1:" + addr
	}
	return addr
}

// ListenAddr returns the resolved [host:]port the server binds.
func (s *Server) ListenAddr() string {
	return s.cfg.Listen
}

// ListenAndServe binds the configured listen address and serves until the
// context is cancelled. A failure to accept is fatal and propagated;
// failures inside individual sessions are not.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	defer ln.Close()

	s.log.Info("listening", "addr", s.cfg.Listen)
	s.log.Info("add this to the MAME command line for wtv1",
		"flags", "-spot:modem null_modem -bitb socket."+s.cfg.Listen)
	s.log.Info("add this to the MAME command line for wtv2",
		"flags", "-solo:modem null_modem -bitb socket."+s.cfg.Listen)

	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln in an unbounded loop, running one
// session per connection. It closes the listener when ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go func() {
			defer conn.Close()
			s.serve(ctx, conn, conn.RemoteAddr().String())
		}()
	}
}

// ServeLink runs a single modem session over an arbitrary byte link, such
// as a serial device, returning when the session ends. The link is not
// closed by the server except as part of relay teardown.
func (s *Server) ServeLink(ctx context.Context, link io.ReadWriteCloser, peer string) {
	s.serve(ctx, link, peer)
}

func (s *Server) serve(ctx context.Context, link io.ReadWriteCloser, peer string) {
	s.mu.Lock()
	s.metrics.NumSessions++
	s.metrics.ActiveSessions++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.metrics.ActiveSessions--
		s.mu.Unlock()
	}()

	newSession(s, link, peer).run(ctx)
}

// Metrics returns a snapshot of the current server statistics.
func (s *Server) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *Server) recordRelay(res relayResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ClientToBackendBytes += res.clientToBackend
	s.metrics.BackendToClientBytes += res.backendToClient
}

// isBenign reports whether a stream error means ordinary termination: the
// peer closed, reset, or aborted, or our own teardown closed the link.
func isBenign(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, fs.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED)
}
