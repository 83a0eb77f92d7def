package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appLog "journalcal/internal/log"
	"journalcal/internal/store"
	"journalcal/internal/web"
)

func newServeCommand(opts *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schedule and rule editor API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			// --listen overrides the config file.
			if listen != "" {
				cfg.Listen = listen
			}

			st, err := opts.openStore(cfg)
			if err != nil {
				return err
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"refresh", cfg.RefreshCron,
				"horizon_days", cfg.HorizonDays,
				"events_file", st.Path(),
				"events", len(st.Events()),
			)

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			srv := web.NewServer(cfg, st)

			loc, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				loc = time.Local
			}
			sched := cron.New(cron.WithLocation(loc))
			if _, err := sched.AddFunc(cfg.RefreshCron, func() { reloadStore(st, srv) }); err != nil {
				return err
			}
			sched.Start()
			defer func() {
				<-sched.Stop().Done()
			}()

			err = srv.Serve(ctx)
			appLog.Info("journalcal exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// reloadStore picks up edits made to the events file outside the API.
func reloadStore(st *store.Store, srv *web.Server) {
	if err := st.Reload(); err != nil {
		appLog.Error("scheduled reload failed; keeping previous events", err, "path", st.Path())
		return
	}
	srv.Invalidate()
	appLog.Info("events reloaded", "path", st.Path(), "events", len(st.Events()))
}
