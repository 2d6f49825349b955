// Command objstream reads, writes and stats objects on the backends
// configured in objstream.yaml.
//
// Usage:
//
//	objstream [-config FILE] [-metrics-addr ADDR] cat  PATH
//	objstream [-config FILE] [-metrics-addr ADDR] put  PATH   (reads stdin)
//	objstream [-config FILE] [-metrics-addr ADDR] cp   SRC DST
//	objstream [-config FILE] [-metrics-addr ADDR] stat PATH
//	objstream [-config FILE] [-metrics-addr ADDR] rm   PATH
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/objstream/objstream-go/internal/config"
	"github.com/objstream/objstream-go/internal/metrics"
	"github.com/objstream/objstream-go/internal/storage"
	"github.com/objstream/objstream-go/pkg/objstream"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config (default: $OBJSTREAM_CONFIG or ./objstream.yaml)")
		metricsAddr = flag.String("metrics-addr", "", "Expose Prometheus metrics on this address (overrides config)")
		bufferSize  = flag.Int("buffer-size", 0, "Stream buffer size in bytes (overrides config)")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddress = *metricsAddr
	}
	if *bufferSize > 0 {
		cfg.Stream.BufferSize = *bufferSize
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := storage.NewRegistryFromConfig(ctx, cfg)
	if err != nil {
		fatal("configure mounts: %v", err)
	}

	met := metrics.Default()
	if cfg.MetricsAddress != "" {
		go serveMetrics(log, cfg.MetricsAddress, met)
	}

	client := objstream.New(reg,
		objstream.WithLogger(log),
		objstream.WithMetrics(met),
		objstream.WithStreamDefaults(cfg.Stream.BufferSize, cfg.Stream.MaxBuffers, cfg.Stream.MaxWorkers),
	)
	defer client.Close()

	if err := run(ctx, client, flag.Arg(0), flag.Args()[1:]); err != nil {
		fatal("%v", err)
	}
}

func run(ctx context.Context, client *objstream.Client, cmd string, args []string) error {
	switch cmd {
	case "cat", "put", "stat", "rm":
		if len(args) < 1 {
			return fmt.Errorf("%s requires a PATH", cmd)
		}
	}

	switch cmd {
	case "ls-mounts":
		for _, prefix := range client.Mounts() {
			fmt.Println(prefix)
		}
		return nil

	case "cat":
		f, err := client.Open(ctx, args[0], "r")
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(os.Stdout, f)
		return err

	case "put":
		f, err := client.Open(ctx, args[0], "w")
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, os.Stdin); err != nil {
			f.Close()
			return err
		}
		return f.Close()

	case "cp":
		if len(args) < 2 {
			return fmt.Errorf("cp requires SRC and DST")
		}
		return client.Copy(ctx, args[1], args[0])

	case "stat":
		h, err := client.Stat(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d bytes\t%s\n", args[0], h.Size, h.ModTime.Format("2006-01-02 15:04:05"))
		return nil

	case "rm":
		return client.Delete(ctx, args[0])

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func serveMetrics(log *slog.Logger, addr string, met *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler())
	log.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics listener failed", "err", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: objstream [flags] COMMAND ARGS

Commands:
  cat  PATH      write the object to stdout
  put  PATH      store stdin as the object
  cp   SRC DST   copy an object, possibly across backends
  stat PATH      print size and modification time
  rm   PATH      delete the object
  ls-mounts      print the configured mount prefixes

Flags:
`)
	flag.PrintDefaults()
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "objstream: "+format+"\n", args...)
	os.Exit(1)
}
