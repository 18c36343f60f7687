package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/eventbus/internal/bus"
	"github.com/dshills/eventbus/internal/config"
	"github.com/dshills/eventbus/internal/event"
	"github.com/dshills/eventbus/internal/event/store"
	"github.com/dshills/eventbus/internal/logging"
)

var (
	soakEvents int
	soakSlow   time.Duration
	soakBus    string
)

var soakCmd = &cobra.Command{
	Use:   "soak",
	Short: "Drive a bus and print its statistics",
	Long: `Declare a small set of event types, subscribe a few callbacks and
post events through the bus and a prefiltered poster, then drain, print
the statistics of every installed bus and close them.

Examples:
  eventbus soak                       # 1000 events on the main bus
  eventbus soak -n 500 --slow 2ms     # slow subscribers, forces overflow
  eventbus soak --bus chat -c bus.toml`,
	RunE: runSoak,
}

func init() {
	soakCmd.Flags().IntVarP(&soakEvents, "events", "n", 1000, "Number of events to post")
	soakCmd.Flags().DurationVar(&soakSlow, "slow", 0, "Delay added to the slow subscriber")
	soakCmd.Flags().StringVar(&soakBus, "bus", bus.MainBus, "Bus to drive")
}

// soakTypes is the schema used by the soak run.
type soakTypes struct {
	severity *event.Enum
	status   *event.Type
	tick     *event.Type
}

func declareSoakTypes() soakTypes {
	reg := event.NewRegistry()
	grp := reg.Group("soak")
	severity := event.NewEnum("Severity", "low", "medium", "high")
	st := soakTypes{
		severity: severity,
		status: grp.MustDeclare("Status",
			event.F("source", event.String),
			event.F("seq", event.Int),
			event.F("severity", event.EnumOf(severity)),
		),
		tick: grp.MustDeclare("Tick", event.F("labels", event.Strings)),
	}
	reg.Seal()
	return st
}

func runSoak(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys := bus.NewSystem(cfg.BusOptions()...)
	sys.Install(bus.MainBus)
	for _, name := range cfg.Buses {
		sys.Install(name)
	}
	b, ok := sys.Get(soakBus)
	if !ok {
		return fmt.Errorf("bus %q: %w", soakBus, bus.ErrBusNotInstalled)
	}

	log := logging.Component("soak")
	types := declareSoakTypes()
	counts, err := subscribeSoak(b, types)
	if err != nil {
		return err
	}

	disk, err := b.Poster(types.status.New().MustSet("source", "disk"))
	if err != nil {
		return err
	}
	disk.Mute()

	start := time.Now()
	for i := 0; i < soakEvents && ctx.Err() == nil; i++ {
		sev := types.severity.Values()[i%3].Name()
		switch i % 4 {
		case 0:
			if err := disk.Post(types.status.New().MustSet("seq", i).MustSet("severity", sev)); err != nil {
				return err
			}
		case 1:
			b.Post(types.status.New().MustSet("source", "net").MustSet("seq", i).MustSet("severity", sev))
		case 2:
			b.Post(types.status.New().MustSet("source", nil).MustSet("seq", i))
		default:
			b.Call(types.tick.New().MustSet("labels", []string{"soak", sev}))
		}
	}
	log.Info().Int("events", soakEvents).Dur("elapsed", time.Since(start)).Msg("posting done")

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainDuration())
	defer cancel()
	if err := b.Drain(drainCtx); err != nil {
		log.Warn().Err(err).Msg("drain incomplete")
	}

	printSoak(cmd.OutOrStdout(), cfg, sys, counts)

	return sys.Close(drainCtx)
}

// soakCounts records how many events each soak subscriber received.
type soakCounts struct {
	all, disk, unsourced, high, ticks atomic.Int64
}

func subscribeSoak(b *bus.Bus, types soakTypes) (*soakCounts, error) {
	c := &soakCounts{}
	subs := []struct {
		template *event.Event
		name     string
		fn       func(*event.Event)
	}{
		{types.status.New(), "all", func(*event.Event) {
			c.all.Add(1)
			if soakSlow > 0 {
				time.Sleep(soakSlow)
			}
		}},
		{types.status.New().MustSet("source", "disk"), "disk", func(*event.Event) { c.disk.Add(1) }},
		{types.status.New().MustSet("source", nil), "unsourced", func(*event.Event) { c.unsourced.Add(1) }},
		{types.status.New().MustSet("severity", "high"), "high", func(*event.Event) { c.high.Add(1) }},
		{types.tick.New(), "ticks", func(*event.Event) { c.ticks.Add(1) }},
	}
	for _, s := range subs {
		if err := b.Subscribe(s.template, store.NewCallback(s.name, s.fn)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func printSoak(out io.Writer, cfg *config.Config, sys *bus.System, c *soakCounts) {
	fmt.Fprintf(out, "config: %s\n\n", cfg)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBSCRIBER\tDELIVERED")
	fmt.Fprintf(w, "all\t%d\n", c.all.Load())
	fmt.Fprintf(w, "disk\t%d\n", c.disk.Load())
	fmt.Fprintf(w, "unsourced\t%d\n", c.unsourced.Load())
	fmt.Fprintf(w, "high\t%d\n", c.high.Load())
	fmt.Fprintf(w, "ticks\t%d\n", c.ticks.Load())
	w.Flush()
	fmt.Fprintln(out)

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BUS\tSTATE\tTYPES\tSUBS\tPOSTED\tCALLED\tDELIVERED\tPANICKED\tCALLBACK TIME\tWORKER\tQUEUE\tREPLACED\tLOST")
	for _, name := range sys.Names() {
		b, ok := sys.Get(name)
		if !ok {
			continue
		}
		st := b.Stats()
		d := st.Dispatch
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%d/%d\t%d\t%d\n",
			st.Name, st.State, st.Types, st.Subscriptions,
			d.Posted, d.Called, d.Delivered, d.Panicked, d.CallbackTime,
			d.Worker.Name, d.Worker.QueueDepth, d.Worker.QueueLimit,
			d.Replacements, d.Lost)
	}
	w.Flush()
}
