package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"exam-attempt-service/internal/backend"
	"exam-attempt-service/internal/config"
	"exam-attempt-service/internal/logger"
	"github.com/spf13/cobra"
)

// NewCatalogCmd lists active quizzes straight from the backend, handy for
// checking gateway connectivity.
func NewCatalogCmd(configPath *string) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List categories and active quizzes from the exam backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			client := backend.NewClient(cfg.Backend.URL, config.TTLDuration(cfg.Backend.Timeout, 0))
			return printCatalog(cmd.Context(), client, username, password, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&username, "username", os.Getenv("EXAM_USERNAME"), "backend username")
	cmd.Flags().StringVar(&password, "password", os.Getenv("EXAM_PASSWORD"), "backend password")
	return cmd
}

func printCatalog(ctx context.Context, client *backend.Client, username, password string, out io.Writer) error {
	token, err := client.GenerateToken(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	ctx = backend.WithToken(ctx, token)

	counts, err := client.ActiveQuizCounts(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tQUIZ\tTITLE\tQUESTIONS\tMAX MARKS")
	for _, c := range counts {
		quizzes, err := client.ActiveQuizzes(ctx, c.CategoryID)
		if err != nil {
			return err
		}
		for _, q := range quizzes {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%.0f\n", c.CategoryTitle, q.ID, q.Title, q.NumberOfQuestions, q.MaxMarks)
		}
	}
	return tw.Flush()
}
