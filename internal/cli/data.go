package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Manumac86/collybrix-admin-sub001/internal/seed"
)

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo data set into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, closeRepo, err := a.openRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			res, err := seed.Load(ctx, repo, a.logger, time.Now().UTC())
			if errors.Is(err, seed.ErrAlreadySeeded) {
				fmt.Fprintln(cmd.OutOrStdout(), err.Error())
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d projects, %d estimations, %d users, %d sprints, %d tags, %d tasks\n",
				res.Projects, res.Estimations, res.Users, res.Sprints, res.Tags, res.Tasks)
			return nil
		},
	}
}

// fixStatusesCmd resets tasks whose status is not a known workflow state.
func (a *app) fixStatusesCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "fix-statuses",
		Short: "Reset tasks with an unknown status to backlog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, closeRepo, err := a.openRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			n, err := repo.ResetInvalidTaskStatuses(ctx, dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d tasks would be reset\n", n)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tasks reset\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count the affected tasks")
	return cmd
}
