package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newSyncCmd creates the 'sync' subcommand, which re-ingests a site's full
// catalog and prunes entries that disappeared from it.
func newSyncCmd() *cobra.Command {
	var (
		site string
		urls []string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a full catalog sync for a site",
		Long: `Fetches every catalog URL for the given site, rebuilds its index and
shard files, and removes entries no longer present in the catalog. URLs
default to the site's configured seed list.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			if len(urls) > 0 && site == "" {
				return fmt.Errorf("--url requires --site")
			}
			sites := []string{site}
			if site == "" {
				sites = appInstance.SiteNames()
			}
			if len(sites) == 0 {
				return fmt.Errorf("no sites configured")
			}

			for _, name := range sites {
				summary, err := appInstance.FullSync(cmd.Context(), name, urls)
				if err != nil {
					return fmt.Errorf("sync %s: %w", name, err)
				}
				appInstance.Logger().Info("full sync finished",
					zap.String("site", name),
					zap.String("run_id", summary.RunID),
					zap.Int("processed", summary.Processed),
					zap.Int("skipped", summary.Skipped),
					zap.Int("failed", summary.Failed),
					zap.Strings("touched_shards", summary.TouchedShards),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "site to sync (default: all configured sites)")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "catalog URL (repeatable, default: configured seed urls)")
	return cmd
}
