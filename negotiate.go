package touchppp

import (
	"context"
	"time"
)

// connectWebTV emits the WebTV OS connect sequence: carrier speed,
// compression, then the top connect speed. The speeds are cosmetic (the
// relay is never throttled), but the OS shows a different "connected at"
// message depending on the carrier code.
func (s *session) connectWebTV() error {
	carrier := codeCarrier33600
	if s.k56Modem && s.k56Connect {
		carrier = codeCarrier56000
	}
	for _, code := range []string{carrier, codeCompressionV42bis, codeConnect115200} {
		if err := s.emit(code, false); err != nil {
			return err
		}
	}
	return nil
}

// connectWinCE paces RING and CONNECT the way Unimodem expects: a fixed
// delay before each result and one more before the data flows. No carrier
// or compression codes are sent on this path.
func (s *session) connectWinCE(ctx context.Context) error {
	if err := s.pause(ctx); err != nil {
		return err
	}
	if err := s.emit(codeRing, false); err != nil {
		return err
	}
	if err := s.pause(ctx); err != nil {
		return err
	}
	if err := s.emit(codeConnect, false); err != nil {
		return err
	}
	return s.pause(ctx)
}

func (s *session) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.srv.cfg.ConnectDelay):
		return nil
	}
}
