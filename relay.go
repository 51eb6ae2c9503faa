package touchppp

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// relayResult reports the bytes moved in each direction of a finished relay.
type relayResult struct {
	clientToBackend int64
	backendToClient int64
}

// detection is the outcome of scanning a relay chunk for in-band commands.
type detection int

const (
	detectNone detection = iota
	detectEscape
	detectCommand
)

// atDetector re-runs command-line accumulation over live relay traffic to
// catch a client injecting modem commands without a guard period.
type atDetector struct {
	line commandLine
}

func (d *atDetector) scan(p []byte) detection {
	for _, b := range p {
		d.line.feed(b)
		if bytes.Contains(d.line.buf, []byte("+++")) {
			return detectEscape
		}
		if d.line.len() >= 5 && (b == lineFeed || b == carriageReturn) {
			if bytes.HasPrefix(d.line.buf, []byte("AT")) {
				return detectCommand
			}
			d.line.reset()
		}
	}
	return detectNone
}

// relay runs the two copy loops between client and backend. Whichever loop
// finishes first, whether on EOF, a detected escape, or an error, cancels
// the pair; the
// watcher closes both links so the other loop unblocks even mid-read. The
// cancellation is scoped to this relay instance and never reused.
func (s *session) relay(ctx context.Context, backend io.ReadWriteCloser) relayResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			backend.Close()
			s.link.Close()
		case <-done:
		}
	}()

	var res relayResult
	g := new(errgroup.Group)
	g.Go(func() error {
		defer cancel()
		n, err := s.copyClientToBackend(ctx, backend)
		res.clientToBackend = n
		return err
	})
	g.Go(func() error {
		defer cancel()
		n, err := s.copyBackendToClient(ctx, backend)
		res.backendToClient = n
		return err
	})
	if err := g.Wait(); err != nil && !isBenign(err) {
		s.log.Error("relay failed", "err", err)
	}
	return res
}

// copyClientToBackend forwards client bytes to the backend unmodified while
// watching the stream for escape/command injection. A detected sequence
// ends the relay before the offending chunk is forwarded.
func (s *session) copyClientToBackend(ctx context.Context, backend io.Writer) (int64, error) {
	var det atDetector
	var copied int64
	buf := make([]byte, bufferSize)
	for {
		n, err := s.link.Read(buf)
		if ctx.Err() != nil {
			return copied, nil
		}
		if err != nil || n == 0 {
			if isBenign(err) {
				return copied, nil
			}
			return copied, err
		}
		chunk := buf[:n]
		s.log.Log(ctx, LevelTrace, "relay chunk", "dir", "client->backend", "hex", fmt.Sprintf("% x", chunk))

		switch det.scan(chunk) {
		case detectEscape:
			s.log.Info("client requested command mode with +++, disconnecting")
			return copied, nil
		case detectCommand:
			s.log.Info("AT command detected in PPP traffic, disconnecting")
			return copied, nil
		}

		if _, err := backend.Write(chunk); err != nil {
			if isBenign(err) || ctx.Err() != nil {
				return copied, nil
			}
			return copied, err
		}
		copied += int64(n)
	}
}

// copyBackendToClient forwards backend bytes to the client unmodified; no
// framing is added and nothing is inspected in this direction.
func (s *session) copyBackendToClient(ctx context.Context, backend io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, bufferSize)
	for {
		n, err := backend.Read(buf)
		if ctx.Err() != nil {
			return copied, nil
		}
		if err != nil || n == 0 {
			if isBenign(err) {
				return copied, nil
			}
			return copied, err
		}
		chunk := buf[:n]
		s.log.Log(ctx, LevelTrace, "relay chunk", "dir", "backend->client", "hex", fmt.Sprintf("% x", chunk))

		if _, err := s.link.Write(chunk); err != nil {
			if isBenign(err) || ctx.Err() != nil {
				return copied, nil
			}
			return copied, err
		}
		copied += int64(n)
	}
}
