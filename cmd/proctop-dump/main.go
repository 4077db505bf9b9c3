// Command proctop-dump prints monitor snapshots to stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/skobkin/proctop-web/internal/app"
	"github.com/skobkin/proctop-web/internal/config"
	"github.com/skobkin/proctop-web/internal/monitor"
)

type options struct {
	procRoot   string
	osRelease  string
	passwd     string
	clockTicks int64
	interval   time.Duration
	samples    int
	top        int
	jsonOutput bool
	verbose    bool
}

func main() {
	defaults := config.Default()
	var o options

	root := &cobra.Command{
		Use:   "proctop-dump",
		Short: "Print host and process statistics read from /proc",
		Long: `proctop-dump samples the proc filesystem and prints the host summary
followed by the processes ranked by CPU utilization.

The first sample only primes the host CPU counters; every printed sample is
taken one interval after the previous one.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}

	flags := root.Flags()
	flags.StringVar(&o.procRoot, "proc", envOrDefault("APP_PROC_ROOT", defaults.Paths.ProcRoot), "path to proc root")
	flags.StringVar(&o.osRelease, "os-release", envOrDefault("APP_OS_RELEASE_PATH", defaults.Paths.OSReleasePath), "path to os-release file")
	flags.StringVar(&o.passwd, "passwd", envOrDefault("APP_PASSWD_PATH", defaults.Paths.PasswdPath), "path to passwd file")
	flags.Int64Var(&o.clockTicks, "clock-ticks", 0, "jiffies per second (0 = ask the OS)")
	flags.DurationVarP(&o.interval, "interval", "i", time.Second, "delay between samples")
	flags.IntVarP(&o.samples, "samples", "s", 1, "number of samples to print")
	flags.IntVarP(&o.top, "top", "n", defaults.Proc.Top, "number of processes to print")
	flags.BoolVar(&o.jsonOutput, "json", false, "emit snapshots as JSON")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log proc read failures")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error(err.Error())
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, o options) error {
	if o.interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	if o.samples <= 0 {
		return fmt.Errorf("samples must be > 0")
	}
	if o.top <= 0 {
		return fmt.Errorf("top must be > 0")
	}
	if o.clockTicks < 0 {
		return fmt.Errorf("clock-ticks must be >= 0")
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	cfg.SampleInterval = o.interval
	cfg.ClockTicks = o.clockTicks
	cfg.Paths = config.PathsConfig{
		ProcRoot:      o.procRoot,
		OSReleasePath: o.osRelease,
		PasswdPath:    o.passwd,
	}
	cfg.Proc.Top = o.top

	manager, err := app.NewMonitor(logger, cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	manager.Refresh(time.Now())

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for i := 0; i < o.samples; i++ {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			snapshot := manager.Refresh(now)
			if err := write(out, snapshot, o.jsonOutput); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
		}
	}
	return nil
}

func write(out io.Writer, snapshot monitor.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}
	if err := printSnapshot(out, snapshot); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out)
	return err
}

func printSnapshot(w io.Writer, snapshot monitor.Snapshot) error {
	sys := snapshot.System
	mem := "n/a"
	if sys.MemoryUtilization != nil {
		mem = percent(*sys.MemoryUtilization)
	}
	load := "n/a"
	if sys.LoadAverage != nil {
		load = fmt.Sprintf("%.2f %.2f %.2f", sys.LoadAverage.Load1, sys.LoadAverage.Load5, sys.LoadAverage.Load15)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "OS:\t%s\n", sys.OS)
	fmt.Fprintf(tw, "Kernel:\t%s\n", sys.Kernel)
	fmt.Fprintf(tw, "CPU:\t%s\n", percent(sys.CPUUtilization))
	fmt.Fprintf(tw, "Memory:\t%s\n", mem)
	fmt.Fprintf(tw, "Load:\t%s\n", load)
	fmt.Fprintf(tw, "Total Processes:\t%d\n", sys.TotalProcesses)
	fmt.Fprintf(tw, "Running Processes:\t%d\n", sys.RunningProcesses)
	fmt.Fprintf(tw, "Up Time:\t%s\n", sys.Uptime)
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tUSER\tCPU[%]\tRAM[MB]\tTIME+\tCOMMAND")
	for _, p := range snapshot.Processes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			p.PID, p.User, strconv.FormatFloat(p.CPUUtilization*100, 'f', 1, 64), p.RAMMB, p.Uptime, p.Command)
	}
	return tw.Flush()
}

func percent(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 1, 64) + "%"
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
