package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/volcengine/apminsight-pprof-go/aipprof/client"
	"github.com/volcengine/apminsight-pprof-go/aipprof/common"
)

func newTopCmd() *cobra.Command {
	var (
		baseURL    string
		seconds    int
		n          int
		sampleType string
	)

	cmd := &cobra.Command{
		Use:   "top <profile|wall|heap|thread>",
		Short: "Fetch a profile from a running endpoint and print its top functions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := common.FromString(args[0])
			if !ok {
				return fmt.Errorf("unknown profile %q", args[0])
			}
			c, err := client.New(baseURL)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			start := time.Now()
			p, err := c.Fetch(ctx, kind, seconds)
			if err != nil {
				return fmt.Errorf("failed to fetch %s profile: %w", kind, err)
			}
			top, err := client.TopFunctions(p, sampleType, n)
			if err != nil {
				return err
			}

			cmd.Printf("%s profile: %d samples in %s\n", kind, len(p.Sample), time.Since(start).Round(time.Millisecond))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "FLAT\tFLAT%\tCUM\tFUNCTION")
			for _, s := range top {
				_, _ = fmt.Fprintf(w, "%d\t%.2f%%\t%d\t%s\n", s.Flat, s.FlatPct, s.Cum, s.Function)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&baseURL, "url", "u", "http://localhost:8080/debug/pprof", "Base URL of the endpoints")
	cmd.Flags().IntVarP(&seconds, "seconds", "s", 10, "Duration of cpu and wall collections")
	cmd.Flags().IntVarP(&n, "top", "n", 10, "Number of functions to print, 0 for all")
	cmd.Flags().StringVar(&sampleType, "sample-type", "", "Sample type to rank by, the profile default if empty")

	return cmd
}
