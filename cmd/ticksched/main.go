package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ticksched/internal/job"
	"ticksched/internal/logging"
	"ticksched/internal/port/avr"
	"ticksched/internal/sched"
	"ticksched/internal/serial"
)

var (
	flagConfig   string
	flagLogLevel string
	flagTicks    uint64
	flagTrace    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ticksched",
		Short:        "Priority tick scheduler on a simulated ATmega328P",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yml", "YAML configuration file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override log_level (debug, info, warn, error)")

	run := &cobra.Command{
		Use:   "run",
		Short: "Boot the core, start the demo tasks and tick until interrupted",
		RunE:  runFirmware,
	}
	run.Flags().Uint64Var(&flagTicks, "ticks", 0, "Stop after about N ticks (0 = run until SIGINT)")
	run.Flags().StringVar(&flagTrace, "trace", "", "Write scheduler events to this CSV file (overrides trace_csv)")

	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	root.AddCommand(run, cfgCmd)
	return root
}

func loadConfig() (sched.Config, error) {
	cfg, err := sched.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagTrace != "" {
		cfg.TraceCSV = flagTrace
	}
	return cfg, nil
}

func runFirmware(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, _ := logging.Build(cfg.LogLevel, cfg.LogEncoding, os.Stdout)
	defer logger.Sync()

	core := avr.NewMachine()
	defer core.Shutdown()

	pool, err := avr.StackPool(cfg.StackPoolBytes, cfg.MainStackBytes)
	if err != nil {
		return err
	}
	s, err := sched.New(cfg, core, pool, logger)
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Teardown()

	if cfg.TraceCSV != "" {
		if err := s.EnableCSVLogging(cfg.TraceCSV); err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
	}

	usart := serial.New(os.Stdin, cmd.OutOrStdout())
	if err := usart.Start(serial.DefaultBaud); err != nil {
		return err
	}

	var led atomic.Bool
	var spins atomic.Uint64
	tasks := []struct {
		name     string
		entry    func(any)
		stack    uint16
		priority uint8
		param    any
	}{
		{"spin", job.Spin(core.Checkpoint, &spins), 48, 1, nil},
		{"blink", job.Blink(s, 500, &led), 64, 2, nil},
		{"printer", job.Printer(s, usart, 1000), 80, 3, "ticksched alive"},
	}
	for _, t := range tasks {
		if _, err := s.CreateTask(t.entry, t.name, t.stack, t.priority, t.param); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if flagTicks > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(flagTicks)*time.Duration(cfg.TickMS)*time.Millisecond)
		defer cancel()
	}

	if err := s.Run(ctx); err != nil {
		return err
	}

	logger.Info("demo finished", zap.Uint64("spins", spins.Load()), zap.Bool("led", led.Load()))
	printSummary(cmd, s)
	return nil
}

func printSummary(cmd *cobra.Command, s *sched.Scheduler) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "HANDLE\tNAME\tPRIO\tSTATE\tDELAY\tSTACK\n")
	for _, t := range s.Tasks() {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\t%s %s\n",
			t.Handle, t.Name, t.Priority, t.State, t.DelayTicks,
			t.Region, humanize.Bytes(uint64(t.Region.Size)))
	}
	w.Flush()

	used, total := s.StackUsage()
	fmt.Fprintf(cmd.OutOrStdout(), "ticks: %d  stack pool: %s of %s used\n",
		s.Ticks(), humanize.Bytes(uint64(used)), humanize.Bytes(uint64(total)))
}
