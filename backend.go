package touchppp

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/aymanbagabas/go-pty"
)

// dataMode resolves the configured backend and relays bytes between it and
// the client until either side ends. Backend acquisition failures are
// logged and leave the session to end with zero bytes transferred; they
// never reach the acceptor.
func (s *session) dataMode(ctx context.Context) {
	backend, err := s.openBackend(ctx)
	if err != nil {
		s.log.Error("backend unavailable", "err", err)
		return
	}
	defer backend.Close()

	s.srv.mu.Lock()
	s.srv.metrics.NumRelays++
	s.srv.metrics.LastConnTime = time.Now()
	s.srv.mu.Unlock()

	res := s.relay(ctx, backend)
	s.srv.recordRelay(res)
	s.log.Info("relay finished",
		"clientToBackend", res.clientToBackend,
		"backendToClient", res.backendToClient)
}

// openBackend spawns the configured PPP command, or dials the remote PPP
// host when no command is set. Exactly one backend exists per session.
func (s *session) openBackend(ctx context.Context) (io.ReadWriteCloser, error) {
	if s.srv.exeName != "" {
		s.log.Info("launching PPP command", "command", s.srv.cfg.Exec, "pty", s.srv.cfg.ExecPty)
		if s.srv.cfg.ExecPty {
			return startPtyProcess(s.srv.exeName, s.srv.exeArgs)
		}
		return startProcess(s.srv.exeName, s.srv.exeArgs)
	}

	s.log.Info("dialing PPP host", "addr", s.srv.cfg.Connect)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.srv.cfg.Connect)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.srv.cfg.Connect, err)
	}
	return conn, nil
}

// procBackend is a child process whose piped stdin/stdout act as the data
// channel. The child never outlives the owning session: Close kills it.
type procBackend struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	closeOnce sync.Once
}

func startProcess(name string, args []string) (io.ReadWriteCloser, error) {
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", name, err)
	}
	return &procBackend{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

func (p *procBackend) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *procBackend) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *procBackend) Close() error {
	p.closeOnce.Do(func() {
		p.stdin.Close()
		p.stdout.Close()
		// Kill is best-effort; the child may already have exited on EOF.
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		p.cmd.Wait()
	})
	return nil
}

// ptyBackend runs the child on a pseudo-terminal for PPP daemons that
// refuse to speak over plain pipes.
type ptyBackend struct {
	pty pty.Pty
	cmd *pty.Cmd

	closeOnce sync.Once
	closeErr  error
}

func startPtyProcess(name string, args []string) (io.ReadWriteCloser, error) {
	p, err := pty.New()
	if err != nil {
		return nil, err
	}
	cmd := p.Command(name, args...)
	if err := cmd.Start(); err != nil {
		p.Close()
		return nil, fmt.Errorf("launch %s on %s: %w", name, p.Name(), err)
	}
	return &ptyBackend{pty: p, cmd: cmd}, nil
}

func (p *ptyBackend) Read(b []byte) (int, error) {
	return p.pty.Read(b)
}

func (p *ptyBackend) Write(b []byte) (int, error) {
	return p.pty.Write(b)
}

func (p *ptyBackend) Close() error {
	p.closeOnce.Do(func() {
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		p.cmd.Wait()
		p.closeErr = p.pty.Close()
	})
	return p.closeErr
}
