package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"go.bug.st/serial"

	"github.com/wtvtools/touchppp"
)

type options struct {
	Listen  string `short:"l" long:"listen" value-name:"[HOST:]PORT" default:"127.0.0.1:1122" description:"Socket address to listen on for the emulator's null modem. 127.0.0.1 is used as the IP if just the port is given."`
	Connect string `short:"c" long:"connect" value-name:"HOST:PORT" default:"127.0.0.1:2323" description:"Remote server that provides PPP communication. Either this or the -e option can be used."`
	Exec    string `short:"e" long:"exec" value-name:"/path/to/exe exe_options" description:"PPP command to run for direct PPP communication, e.g. '/usr/sbin/pppd notty'."`
	ExecPty bool   `long:"exec-pty" description:"Run the -e command on a pseudo-terminal instead of plain pipes."`
	Serial  string `long:"serial" value-name:"DEVICE" description:"Serve a single session over a serial device instead of listening on TCP."`
	Baud    int    `long:"baud" value-name:"RATE" default:"115200" description:"Baud rate for --serial."`
	Quiet   bool   `short:"q" long:"quiet" description:"Log nothing at all."`
	Verbose []bool `short:"v" long:"verbose" description:"Increase verbosity: -v warnings, -vv info, -vvv debug, -vvvv byte tracing."`
}

func logLevel(opts *options) slog.Level {
	if opts.Quiet {
		return slog.LevelError + 4
	}
	switch len(opts.Verbose) {
	case 0:
		return slog.LevelError
	case 1:
		return slog.LevelWarn
	case 2:
		return slog.LevelInfo
	case 3:
		return slog.LevelDebug
	default:
		return touchppp.LevelTrace
	}
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(&opts),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := touchppp.NewServer(&touchppp.Config{
		Listen:  opts.Listen,
		Connect: opts.Connect,
		Exec:    opts.Exec,
		ExecPty: opts.ExecPty,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("bad configuration", "err", err)
		os.Exit(1)
	}

	if opts.Serial != "" {
		port, err := serial.Open(opts.Serial, &serial.Mode{BaudRate: opts.Baud})
		if err != nil {
			logger.Error("cannot open serial device", "device", opts.Serial, "err", err)
			os.Exit(1)
		}
		defer port.Close()
		logger.Info("serving over serial device", "device", opts.Serial, "baud", opts.Baud)
		srv.ServeLink(ctx, port, opts.Serial)
		return
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
