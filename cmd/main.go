package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/spf13/cobra"
	"github.com/xunia-labs/carbon-dashboard/internal/delivery"
	"github.com/xunia-labs/carbon-dashboard/internal/logging"
	"github.com/xunia-labs/carbon-dashboard/internal/properties"
	"github.com/xunia-labs/carbon-dashboard/internal/ui"
	"go.uber.org/zap"
)

var (
	configPath string
	startDate  string
	endDate    string
	noBanner   bool

	cfg    *properties.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "carbon-dashboard",
	Short: "Carbon sequestration dashboard for the Berkshire Taconic Landscape",
	Long: `carbon-dashboard estimates forest carbon storage from satellite NDVI
(carbon = NDVI x 200 tons/ha) and serves maps, statistics and time series.

Run "carbon-dashboard serve" for the web dashboard, or use the stats,
timeseries and map commands for one-off reports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		properties.LoadEnv()

		var err error
		cfg, err = properties.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogJSON)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		godal.RegisterAll()

		if !noBanner {
			ui.PrintBanner("Carbon", "Dashboard")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults to $CARBON_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&startDate, "start", "", "start date YYYY-MM-DD (default: dashboard.default_days before end)")
	rootCmd.PersistentFlags().StringVar(&endDate, "end", "", "end date YYYY-MM-DD (default: today)")
	rootCmd.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "do not print the banner")
}

// dateRange resolves --start and --end against the configured default span.
func dateRange() (delivery.DateRange, error) {
	return delivery.ParseRange(startDate, endDate, time.Now(), cfg.Dashboard.DefaultDays)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// recoverPanic prints where a panic happened and reports it to the error
// webhook before exiting.
func recoverPanic() {
	r := recover()
	if r == nil {
		return
	}

	pc, file, line, ok := runtime.Caller(3)
	location := "Unknown location"
	if ok {
		location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
	}

	ui.PrintError(fmt.Sprintf("PANIC: %v", r))
	ui.PrintError(fmt.Sprintf("Location: %s", location))

	if cfg != nil {
		notifyPanic(fmt.Sprintf("Carbon dashboard panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, debug.Stack()))
	}
	os.Exit(2)
}

func notifyPanic(msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notifierFromConfig(cfg).Error(ctx, msg); err != nil {
		ui.PrintError(fmt.Sprintf("Failed to send notification: %s", err))
	}
}

func main() {
	defer recoverPanic()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
