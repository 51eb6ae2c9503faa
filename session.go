package touchppp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	bufferSize     = 0x1000
	maxCommandLine = 50

	// Command bytes live in [printableMin, printableMax); anything else
	// resets the accumulated line.
	printableMin = 0x0a
	printableMax = 0x7a

	lineFeed       = 0x0a
	carriageReturn = 0x0d
)

// Reserved support numbers that must never negotiate a 56k carrier.
var reservedNumbers = []string{"18006138199", "18004653537"}

// commandLine accumulates bytes that look like the start of an AT command.
// The buffer resets on any byte outside the printable command range, as
// soon as the text can no longer be an "AT" or "++" command, and past 50
// bytes as an anti-runaway bound.
type commandLine struct {
	buf []byte
}

func (l *commandLine) feed(b byte) {
	if b < printableMin || b >= printableMax {
		l.reset()
		return
	}
	l.buf = append(l.buf, b)
	if (len(l.buf) >= 2 && !l.hasValidPrefix()) || len(l.buf) > maxCommandLine {
		l.reset()
	}
}

func (l *commandLine) hasValidPrefix() bool {
	return bytes.HasPrefix(l.buf, []byte("AT")) || bytes.HasPrefix(l.buf, []byte("++"))
}

func (l *commandLine) reset() {
	l.buf = l.buf[:0]
}

func (l *commandLine) len() int {
	return len(l.buf)
}

func (l *commandLine) String() string {
	return string(l.buf)
}

// session holds the per-connection modem state. It is exclusively owned by
// the goroutine running it; no locking is needed.
type session struct {
	srv  *Server
	link io.ReadWriteCloser
	peer string
	log  *slog.Logger

	line commandLine

	k56Modem   bool
	k56Connect bool
	webtvOS    bool
	verbose    bool
	echo       bool
}

func newSession(srv *Server, link io.ReadWriteCloser, peer string) *session {
	return &session{
		srv:  srv,
		link: link,
		peer: peer,
		log:  srv.log.With("peer", peer),
		// WebTV OS is assumed until an F0 token says otherwise.
		webtvOS: true,
		verbose: true,
		echo:    true,
	}
}

// run consumes client bytes one read chunk at a time, echoing and
// accumulating command lines until a dial or data-mode trigger hands the
// link to the relay engine. It returns when the client stream ends, a
// write fails, or a relay finishes.
func (s *session) run(ctx context.Context) {
	s.log.Info("client connected")

	buf := make([]byte, bufferSize)
	for ctx.Err() == nil {
		n, err := s.link.Read(buf)
		if err != nil || n == 0 {
			if isBenign(err) {
				s.log.Info("client disconnected")
			} else {
				s.log.Error("client read failed", "err", err)
			}
			return
		}
		chunk := buf[:n]
		s.log.Log(ctx, LevelTrace, "client chunk", "hex", fmt.Sprintf("% x", chunk))

		// Full-duplex local echo: the whole chunk goes back verbatim when
		// it opens with a command byte.
		if s.echo && chunk[0] >= printableMin && chunk[0] < printableMax {
			if _, err := s.link.Write(chunk); err != nil {
				s.log.Error("echo write failed", "err", err)
				return
			}
		}

		for _, b := range chunk {
			s.line.feed(b)
		}

		// Only the last byte of the chunk marks a complete command; the
		// client firmwares never split the terminator off mid-buffer.
		last := chunk[n-1]
		if (last == carriageReturn || last == lineFeed) && s.line.len() > 0 {
			stop, err := s.command(ctx)
			if err != nil {
				if !isBenign(err) {
					s.log.Error("client write failed", "err", err)
				}
				return
			}
			if stop {
				return
			}
		}
	}
}

// command evaluates the accumulated line against the ordered substring
// rules both firmware families use. The flag rules must run before the
// dispatch: a dial line can carry a 56k-disable token. It reports
// stop=true once a relay has run, which ends the session.
func (s *session) command(ctx context.Context) (stop bool, err error) {
	line := s.line.String()
	s.line.reset()
	s.log.Debug("command", "line", strings.Trim(line, "\r\n"))

	if strings.Contains(line, "S51=31") {
		// S51 writes are how the softmodem profile turns 56k off.
		s.log.Info("client disabled 56k (softmodem profile)")
		s.k56Connect = false
	} else if strings.Contains(line, "+MS=11,1") {
		// Modulation select 11,1 disables K56flex and V.90.
		s.log.Info("client disabled 56k (Rockwell hardmodem profile)")
		s.k56Connect = false
	}

	// Windows CE's Unimodem opens with an F0 token; WebTV OS TellyScripts
	// never sends one.
	if strings.Contains(line, "F0") {
		s.log.Info("Windows CE init string detected")
		s.webtvOS = false
	}

	if strings.Contains(line, "V1") {
		s.verbose = true
	} else if strings.Contains(line, "V0") {
		s.verbose = false
	}

	if strings.Contains(line, "E1") {
		s.echo = true
	} else if strings.Contains(line, "E0") {
		s.echo = false
	}

	switch {
	case strings.Contains(line, "I3"):
		// Firmware probe that only the 56k client firmware sends.
		s.log.Info("firmware probe, negotiating as a 56k modem")
		s.k56Modem = true
		s.k56Connect = true
		return false, s.emitShort(codeFirmwareID, true)

	case strings.Contains(line, "DT"), strings.Contains(line, "DP"):
		for _, num := range reservedNumbers {
			if strings.Contains(line, num) {
				// The 1-800 numbers never connect at 56k.
				s.k56Connect = false
			}
		}
		if !s.webtvOS {
			// Windows CE dials and expects the data mode to open right away.
			if err := s.connectWinCE(ctx); err != nil {
				return false, err
			}
			s.dataMode(ctx)
			return true, nil
		}
		return false, s.emit(codeOK, false)

	case strings.Contains(line, "TD\r"):
		// ATD on its own is the request to enter data mode.
		if err := s.connectWebTV(); err != nil {
			return false, err
		}
		if s.webtvOS {
			s.dataMode(ctx)
			return true, nil
		}
		return false, nil

	default:
		return false, s.emit(codeOK, true)
	}
}

// emit writes one result line in the form the session's verbose flag selects.
func (s *session) emit(code string, leadingBlank bool) error {
	return writeResult(s.link, code, s.verbose, leadingBlank)
}

// emitShort writes the short form regardless of the verbose flag.
func (s *session) emitShort(code string, leadingBlank bool) error {
	return writeResult(s.link, code, false, leadingBlank)
}
