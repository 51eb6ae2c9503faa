package touchppp

import (
	"bytes"
	"io"
)

// Short result codes the interpreter and negotiator emit.
const (
	codeOK                = "0"
	codeConnect           = "1"
	codeRing              = "2"
	codeConnect115200     = "19"
	codeCompressionV42bis = "67"
	codeCarrier33600      = "79"
	codeCarrier56000      = "162"
	codeFirmwareID        = "V69420_WEBTV-K56_DLP"
)

// longResults maps short result codes to their verbose text. Built once,
// never mutated, shared read-only by every session.
var longResults = map[string]string{
	"0":                    "OK",
	"1":                    "CONNECT",
	"2":                    "RING",
	"3":                    "NO CARRIER",
	"4":                    "ERROR",
	"5":                    "CONNECT 1200",
	"6":                    "NO DIALTONE",
	"7":                    "BUSY",
	"8":                    "NO ANSWER",
	"9":                    "CONNECT 0600",
	"10":                   "CONNECT 2400",
	"11":                   "CONNECT 4800",
	"12":                   "CONNECT 9600",
	"13":                   "CONNECT 7200",
	"14":                   "CONNECT 12000",
	"15":                   "CONNECT 14400",
	"16":                   "CONNECT 19200",
	"17":                   "CONNECT 38400",
	"18":                   "CONNECT 57600",
	"19":                   "CONNECT 115200",
	"20":                   "CONNECT 230400",
	"22":                   "CONNECT 75TX/1200RX",
	"23":                   "CONNECT 1200TX/75RX",
	"24":                   "DELAYED",
	"32":                   "BLACKLISTED",
	"33":                   "FAX",
	"35":                   "DATA",
	"40":                   "CARRIER 300",
	"44":                   "CARRIER 1200/75",
	"45":                   "CARRIER 75/1200",
	"46":                   "CARRIER 1200",
	"47":                   "CARRIER 2400",
	"48":                   "CARRIER 4800",
	"49":                   "CARRIER 7200",
	"50":                   "CARRIER 9600",
	"51":                   "CARRIER 12000",
	"52":                   "CARRIER 14400",
	"53":                   "CARRIER 16800",
	"54":                   "CARRIER 19200",
	"55":                   "CARRIER 21600",
	"56":                   "CARRIER 24000",
	"57":                   "CARRIER 26400",
	"58":                   "CARRIER 28800",
	"59":                   "CONNECT 16800",
	"61":                   "CONNECT 21600",
	"62":                   "CONNECT 24000",
	"63":                   "CONNECT 26400",
	"64":                   "CONNECT 28800",
	"66":                   "COMPRESSION: CLASS 5",
	"67":                   "COMPRESSION: V.42 bis",
	"69":                   "COMPRESSION: NONE",
	"70":                   "PROTOCOL: NONE",
	"77":                   "PROTOCOL: LAPM",
	"78":                   "CARRIER 31200",
	"79":                   "CARRIER 33600",
	"80":                   "PROTOCOL: ALT",
	"81":                   "PROTOCOL: ALT-CELLULAR",
	"84":                   "CONNECT 33600",
	"91":                   "CONNECT 31200",
	"150":                  "CARRIER 32000",
	"151":                  "CARRIER 34000",
	"152":                  "CARRIER 36000",
	"153":                  "CARRIER 38000",
	"154":                  "CARRIER 40000",
	"155":                  "CARRIER 42000",
	"156":                  "CARRIER 44000",
	"157":                  "CARRIER 46000",
	"158":                  "CARRIER 48000",
	"159":                  "CARRIER 50000",
	"160":                  "CARRIER 52000",
	"161":                  "CARRIER 54000",
	"162":                  "CARRIER 56000",
	"165":                  "CONNECT 32000",
	"166":                  "CONNECT 34000",
	"167":                  "CONNECT 36000",
	"168":                  "CONNECT 38000",
	"169":                  "CONNECT 40000",
	"170":                  "CONNECT 42000",
	"171":                  "CONNECT 44000",
	"172":                  "CONNECT 46000",
	"173":                  "CONNECT 48000",
	"174":                  "CONNECT 50000",
	"175":                  "CONNECT 52000",
	"176":                  "CONNECT 54000",
	"177":                  "CONNECT 56000",
	"+F4":                  "+FCERROR",
	"V69420_WEBTV-K56_DLP": "V69420_WEBTV-K56_DLP",
}

// longResult returns the verbose text for a short code. Codes missing from
// the table read back as OK; both client firmwares treat that as benign.
func longResult(short string) string {
	if long, ok := longResults[short]; ok {
		return long
	}
	return "OK"
}

// writeResult frames one result line: an optional bare CRLF, then the
// short code or its verbose text, then CRLF. Any write error is returned
// to the caller, which treats it as session-ending.
func writeResult(w io.Writer, code string, verbose, leadingBlank bool) error {
	var b bytes.Buffer
	if leadingBlank {
		b.WriteString("\r\n")
	}
	if verbose {
		b.WriteString(longResult(code))
	} else {
		b.WriteString(code)
	}
	b.WriteString("\r\n")
	_, err := w.Write(b.Bytes())
	return err
}
