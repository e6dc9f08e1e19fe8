// File: internal/cleanup/job.go
package cleanup

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kgtool/internal/cms"
)

// ArticleService is the slice of the CMS API the job needs.
type ArticleService interface {
	ListArticles(ctx context.Context) ([]cms.Article, error)
	DeleteArticle(ctx context.Context, documentID string) (int, error)
	CountArticles(ctx context.Context) (int, error)
}

// Failure records one delete that did not return 200.
type Failure struct {
	ID         int
	DocumentID string
	Status     int
	Err        error
}

// Report summarises a cleanup run.
type Report struct {
	Total      int
	Incomplete int
	Deleted    int
	Failed     int
	Remaining  int
	DryRun     bool
	Failures   []Failure
}

// Job deletes every article that has neither a grid image nor a featured image.
type Job struct {
	articles ArticleService
	out      io.Writer
	logger   *zap.Logger
	dryRun   bool
}

// NewJob creates a job that prints its progress to out.
func NewJob(articles ArticleService, out io.Writer, logger *zap.Logger, dryRun bool) *Job {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		articles: articles,
		out:      out,
		logger:   logger.Named("cleanup"),
		dryRun:   dryRun,
	}
}

// Run lists, filters and deletes. Listing and counting errors abort the run;
// a failed delete is printed and the run moves on to the next article.
func (j *Job) Run(ctx context.Context) (Report, error) {
	report := Report{DryRun: j.dryRun}

	j.printf("Fetching all articles...\n")
	all, err := j.articles.ListArticles(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list articles: %w", err)
	}
	report.Total = len(all)
	j.printf("Total articles: %d\n", report.Total)

	var incomplete []cms.Article
	for _, a := range all {
		if a.Incomplete() {
			incomplete = append(incomplete, a)
		}
	}
	report.Incomplete = len(incomplete)
	j.printf("Incomplete articles (no images): %d\n\n", report.Incomplete)

	if len(incomplete) == 0 {
		j.printf("No incomplete articles found!\n")
		report.Remaining = report.Total
		return report, nil
	}

	j.printf("Articles to delete:\n")
	for _, a := range incomplete {
		j.printf("  - [%d] %s\n", a.ID, a.DisplayTitle())
	}

	if j.dryRun {
		j.printf("\nDry run: %d articles would be deleted.\n", len(incomplete))
		report.Remaining = report.Total
		return report, nil
	}

	j.printf("\nDeleting %d incomplete articles...\n", len(incomplete))
	for _, a := range incomplete {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		status, err := j.articles.DeleteArticle(ctx, a.DocumentID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			report.Failures = append(report.Failures, Failure{ID: a.ID, DocumentID: a.DocumentID, Err: err})
			j.printf("  ✗ Failed to delete [%d]: %v\n", a.ID, err)
			j.logger.Warn("Delete request failed", zap.Int("id", a.ID), zap.Error(err))
		case status == http.StatusOK:
			report.Deleted++
			j.printf("  ✓ Deleted: %s\n", a.DisplayTitle())
		default:
			report.Failed++
			report.Failures = append(report.Failures, Failure{ID: a.ID, DocumentID: a.DocumentID, Status: status})
			j.printf("  ✗ Failed to delete [%d]: %d\n", a.ID, status)
			j.logger.Warn("Delete rejected", zap.Int("id", a.ID), zap.Int("status", status))
		}
	}

	remaining, err := j.articles.CountArticles(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to count remaining articles: %w", err)
	}
	report.Remaining = remaining
	j.printf("\nDone! Remaining articles: %d\n", remaining)

	j.logger.Info("Cleanup finished",
		zap.Int("total", report.Total),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", report.Failed),
		zap.Int("remaining", report.Remaining))
	return report, nil
}

func (j *Job) printf(format string, args ...any) {
	fmt.Fprintf(j.out, format, args...)
}
