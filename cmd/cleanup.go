// File: cmd/cleanup.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kgtool/internal/cleanup"
	"github.com/xkilldash9x/kgtool/internal/cms"
	"github.com/xkilldash9x/kgtool/internal/config"
	"github.com/xkilldash9x/kgtool/internal/observability"
)

// articleServiceProvider creates the CMS client used by the cleanup command.
// Tests inject a fake instead of a live CMS.
type articleServiceProvider interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (cleanup.ArticleService, error)
}

type defaultArticleServiceProvider struct{}

func (defaultArticleServiceProvider) Create(_ context.Context, cfg config.Interface, logger *zap.Logger) (cleanup.ArticleService, error) {
	client, err := cms.NewClientFromConfig(cfg.CMS(), logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newCleanupCmd(provider articleServiceProvider) *cobra.Command {
	var dryRun bool

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete articles that have neither a grid image nor a featured image",
		Long: `Lists every article in the CMS, deletes those with no gridImage and no
featuredImage by document id, and prints the remaining article count.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runCleanup(ctx, observability.GetLogger(), cfg, cmd.OutOrStdout(), dryRun, provider)
		},
	}

	cleanupCmd.Flags().String("base-url", "", "CMS base URL (default http://localhost:1337)")
	cleanupCmd.Flags().Float64("rate-limit", 0, "maximum deletes per second, 0 for unlimited")
	cleanupCmd.Flags().BoolVar(&dryRun, "dry-run", false, "list incomplete articles without deleting them")
	return cleanupCmd
}

// runCleanup contains the testable core of the cleanup command.
func runCleanup(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	out io.Writer,
	dryRun bool,
	provider articleServiceProvider,
) error {
	logger.Info("Starting cleanup", zap.String("base_url", cfg.CMS().BaseURL), zap.Bool("dry_run", dryRun))

	svc, err := provider.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create CMS client: %w", err)
	}

	report, err := cleanup.NewJob(svc, out, logger, dryRun).Run(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		logger.Warn("Some deletes failed", zap.Int("failed", report.Failed))
	}
	return nil
}
