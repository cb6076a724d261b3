package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/volcengine/apminsight-pprof-go/aipprof"
	"github.com/volcengine/apminsight-pprof-go/aipprof/collectors"
	ailogrus "github.com/volcengine/apminsight-pprof-go/contrib/sirupsen/logrus"
)

func newServeCmd() *cobra.Command {
	var (
		host     string
		port     int
		prefix   string
		heapRate int
		wallHz   int
		logLevel string
		busy     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pprof endpoints until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			l := logrus.New()
			l.SetLevel(level)
			lg := ailogrus.NewLoggerWithComponent(l, "aipprof")

			opts := []aipprof.Option{
				aipprof.WithLogger(lg),
				aipprof.WithPathPrefix(prefix),
				aipprof.WithWallSampleRate(wallHz),
			}
			if heapRate > 0 {
				tracer := collectors.NewRuntimeHeapTracer()
				tracer.Start(heapRate)
				defer tracer.Stop()
				opts = append(opts, aipprof.WithHeapTracer(tracer))
			}

			srv, err := aipprof.StartPprofServer(host, port, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if busy {
				go runWorkload(ctx)
			}
			cmd.Printf("serving profiles at http://%s%s/\n", srv.Addr(), prefix)
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "Listen host")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Listen port")
	cmd.Flags().StringVar(&prefix, "prefix", "/debug/pprof", "Path prefix of the routes")
	cmd.Flags().IntVar(&heapRate, "heap-rate", 512*1024, "Bytes between heap samples, 0 disables the heap route")
	cmd.Flags().IntVar(&wallHz, "wall-hz", collectors.DefaultWallHz, "Wall-clock sampling frequency")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, error)")
	cmd.Flags().BoolVar(&busy, "busy", true, "Run a synthetic cpu, idle and allocation workload")

	return cmd
}
