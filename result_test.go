package touchppp

import (
	"bytes"
	"errors"
	"testing"
)

func TestLongResult_KnownCodes(t *testing.T) {
	tests := []struct {
		short string
		want  string
	}{
		{"0", "OK"},
		{"1", "CONNECT"},
		{"2", "RING"},
		{"3", "NO CARRIER"},
		{"4", "ERROR"},
		{"19", "CONNECT 115200"},
		{"67", "COMPRESSION: V.42 bis"},
		{"79", "CARRIER 33600"},
		{"162", "CARRIER 56000"},
		{"+F4", "+FCERROR"},
		{"V69420_WEBTV-K56_DLP", "V69420_WEBTV-K56_DLP"},
	}
	for _, tt := range tests {
		if got := longResult(tt.short); got != tt.want {
			t.Errorf("longResult(%q) = %q, want %q", tt.short, got, tt.want)
		}
	}
}

func TestLongResult_WholeTableRoundTrips(t *testing.T) {
	for short, want := range longResults {
		var buf bytes.Buffer
		if err := writeResult(&buf, short, true, false); err != nil {
			t.Fatalf("writeResult(%q): %v", short, err)
		}
		if got := buf.String(); got != want+"\r\n" {
			t.Errorf("verbose %q = %q, want %q", short, got, want+"\r\n")
		}
	}
}

func TestLongResult_UnknownFallsBackToOK(t *testing.T) {
	for _, short := range []string{"", "21", "999", "NOPE"} {
		if got := longResult(short); got != "OK" {
			t.Errorf("longResult(%q) = %q, want OK", short, got)
		}
	}
}

func TestWriteResult_Framing(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		verbose      bool
		leadingBlank bool
		want         string
	}{
		{"short form", "0", false, false, "0\r\n"},
		{"verbose form", "0", true, false, "OK\r\n"},
		{"short with leading blank", "2", false, true, "\r\n2\r\n"},
		{"verbose with leading blank", "162", true, true, "\r\nCARRIER 56000\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeResult(&buf, tt.code, tt.verbose, tt.leadingBlank); err != nil {
				t.Fatalf("writeResult: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

var errWriteFailed = errors.New("write failed")

func TestWriteResult_PropagatesWriteError(t *testing.T) {
	if err := writeResult(failingWriter{}, "0", true, true); err == nil {
		t.Fatal("expected write error")
	}
}
