package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/api"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/schedule"
	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/server"
)

// newServeCmd creates the 'serve' subcommand: the webhook listener plus
// cron-scheduled full syncs.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and scheduled syncs",
		Long: `Starts the HTTP server that accepts change-notification webhooks and
serves health and metrics endpoints. Sites with a configured cron schedule
also get periodic full syncs.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()

			var scheduler *schedule.Scheduler
			for _, name := range appInstance.SiteNames() {
				siteCfg, _ := cfg.Site(name)
				if siteCfg.Schedule == "" {
					continue
				}
				if scheduler == nil {
					scheduler = schedule.New(appInstance, time.Hour, appInstance.Logger())
				}
				if err := scheduler.AddSite(name, siteCfg.Schedule); err != nil {
					return fmt.Errorf("schedule site %s: %w", name, err)
				}
			}

			apiServer := api.NewServer(appInstance, appInstance.Logger())
			srv := server.New(cfg.Server.Port, apiServer.Handler(), scheduler, appInstance.Logger())
			return srv.Run(cmd.Context())
		},
	}
	return cmd
}
