package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/eventbus/internal/bus"
	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/event/store"
	"github.com/dshills/eventbus/internal/fswatch"
)

var watchOp string

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Print file changes delivered through the bus",
	Long: `Watch files or directories and post every change onto the main bus as
an fs.Change event. A subscriber prints the changes it receives; with
--op it subscribes to that operation only.

Examples:
  eventbus watch .                # every change in the current directory
  eventbus watch --op write /tmp  # writes only`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchOp, "op", "", "Only print this operation (create|write|remove|rename|chmod)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := event.NewRegistry()
	change, err := fswatch.Declare(reg)
	if err != nil {
		return err
	}
	reg.Seal()

	sys := bus.NewSystem(cfg.BusOptions()...)
	b := sys.Install(bus.MainBus)

	template := change.New()
	if watchOp != "" {
		if err := template.Set("op", watchOp); err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	err = b.Subscribe(template, store.NewCallback("printer", func(e *event.Event) {
		op, _ := e.Get("op")
		path, _ := e.Get("path")
		fmt.Fprintf(out, "%-6s %s\n", op, path)
	}))
	if err != nil {
		return err
	}

	w, err := fswatch.New(change, b)
	if err != nil {
		return err
	}
	for _, p := range args {
		if err := w.Add(p); err != nil {
			w.Close()
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}

	<-ctx.Done()
	if err := w.Close(); err != nil {
		return err
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainDuration())
	defer cancel()
	return sys.Close(closeCtx)
}
