package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
)

// newUpdateCmd creates the 'update' subcommand for targeted incremental
// batches: explicit URL lists, or a listing-page diff read from a file.
func newUpdateCmd() *cobra.Command {
	var (
		site       string
		added      []string
		changed    []string
		removed    []string
		diffFile   string
		listingURL string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Apply an incremental change batch to a site",
		Long: `Applies a targeted batch of page changes to one site. Pass added,
changed, and removed URLs directly, or pass a listing-page diff file with
the listing URL to let the diff decide which item pages changed.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if site == "" {
				return fmt.Errorf("--site is required")
			}

			if diffFile != "" {
				if listingURL == "" {
					return fmt.Errorf("--listing-url is required with --diff-file")
				}
				diff, err := os.ReadFile(diffFile)
				if err != nil {
					return fmt.Errorf("read diff file: %w", err)
				}
				payload := catalog.NotificationPayload{
					Site: site,
					Pages: []catalog.PageDescriptor{{
						URL:        listingURL,
						ChangeType: catalog.ChangeModified,
						Diff:       string(diff),
					}},
				}
				summary, err := appInstance.Notify(cmd.Context(), site, payload)
				if err != nil {
					return fmt.Errorf("apply diff: %w", err)
				}
				logSummary(appInstance.Logger(), summary)
				return nil
			}

			if len(added)+len(changed)+len(removed) == 0 {
				return fmt.Errorf("nothing to do: pass --added, --changed, --removed, or --diff-file")
			}
			summary, err := appInstance.ApplyChanges(cmd.Context(), site, added, changed, removed)
			if err != nil {
				return fmt.Errorf("apply changes: %w", err)
			}
			logSummary(appInstance.Logger(), summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "site to update (required)")
	cmd.Flags().StringSliceVar(&added, "added", nil, "added page URL (repeatable)")
	cmd.Flags().StringSliceVar(&changed, "changed", nil, "changed page URL (repeatable)")
	cmd.Flags().StringSliceVar(&removed, "removed", nil, "removed page URL (repeatable)")
	cmd.Flags().StringVar(&diffFile, "diff-file", "", "file holding a listing-page diff")
	cmd.Flags().StringVar(&listingURL, "listing-url", "", "listing page the diff belongs to")
	return cmd
}

func logSummary(logger *zap.Logger, summary catalog.Summary) {
	if summary.Duplicate {
		logger.Info("payload already processed, nothing to do",
			zap.String("site", summary.Site),
		)
		return
	}
	logger.Info("update finished",
		zap.String("site", summary.Site),
		zap.String("run_id", summary.RunID),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Strings("touched_shards", summary.TouchedShards),
	)
}
