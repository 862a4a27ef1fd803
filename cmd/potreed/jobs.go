package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MaFalana/HWC-POTREE-API/internal/queue"
)

func newJobsCommand(cctx *commandContext) *cobra.Command {
	var (
		statusFlag string
		limitFlag  int
	)

	cmd := &cobra.Command{
		Use:   "jobs [project-id]",
		Short: "List conversion jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var jobs []*queue.Job
			if len(args) == 1 {
				jobs, err = store.ListByProject(cmd.Context(), args[0])
			} else {
				var status queue.Status
				if statusFlag != "" {
					status, err = queue.ParseStatus(statusFlag)
					if err != nil {
						return err
					}
				}
				jobs, err = store.List(cmd.Context(), status, limitFlag)
			}
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					job.ProjectID,
					string(job.Status),
					string(job.CurrentStep),
					job.ProgressMessage,
					strconv.Itoa(job.RetryCount),
					job.CreatedAt.Local().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "PROJECT", "STATUS", "STEP", "PROGRESS", "RETRIES", "CREATED"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().IntVar(&limitFlag, "limit", 50, "Maximum rows to show")
	return cmd
}
