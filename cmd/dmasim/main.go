package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tinygo-org/rp2dma/internal/simconfig"
	dma "github.com/tinygo-org/rp2dma/rp2-dma"
	"golang.org/x/sync/errgroup"
	yml "gopkg.in/yaml.v2"
)

// A version string that can be set with
//
//	-ldflags "-X main.Build=SOMEVERSION"
//
// at compile-time.
var Build string

func init() {
	if Build == "" {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		Build = strings.TrimPrefix(info.Main.Version, "v")
	}
}

func main() {
	configPath := flag.String("config", "dmasim.yml", "Path to a YAML configuration file")
	printConfig := flag.Bool("print-config", false, "Print the merged configuration and exit")
	events := flag.Int("events", 1024, "Number of trigger pulses to simulate")
	listen := flag.String("listen", "", "Serve prometheus metrics on this address and keep running after the simulation")
	trace := flag.Bool("trace", false, "Print the execution trace")
	printVersion := flag.Bool("version", false, "Print version")

	flag.Parse()

	if *printVersion {
		fmt.Printf("Version: %s\n", Build)
		os.Exit(0)
	}

	required := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			required = true
		}
	})
	c, err := simconfig.Load(*configPath, required)
	if err != nil {
		fmt.Printf("failed to load config: %s\n", err)
		os.Exit(1)
	}
	if err := c.Validate(); err != nil {
		fmt.Printf("invalid config: %s\n", err)
		os.Exit(1)
	}

	if *printConfig {
		if err := yml.NewEncoder(os.Stdout).Encode(c); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	l, err := c.Logger()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, l, c, *events, *listen, *trace); err != nil {
		l.WithError(err).Error("simulation failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, l *logrus.Logger, c simconfig.Config, events int, listen string, trace bool) error {
	pr := prometheus.NewRegistry()
	m := newMetrics(pr)

	sim := dma.NewSimulator(dma.SimLogger(l), dma.SimTrace(trace), dma.SimAbortLatency(2))
	r, err := newRig(sim, c, l)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	var srv *http.Server
	if listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(pr, promhttp.HandlerOpts{ErrorLog: l}))
		srv = &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		eg.Go(func() error {
			l.Infof("Prometheus stats listening on %s at /metrics", listen)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	eg.Go(func() error {
		if err := r.simulate(ctx, events, m, os.Stdout, trace); err != nil {
			return err
		}
		if srv == nil {
			return nil
		}
		// Keep serving the final counters until interrupted.
		<-ctx.Done()
		return nil
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
