package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MaFalana/HWC-POTREE-API/internal/projects"
)

func newProjectsCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newProjectsCreateCommand(cctx))
	cmd.AddCommand(newProjectsListCommand(cctx))
	return cmd
}

func newProjectsCreateCommand(cctx *commandContext) *cobra.Command {
	var (
		name    string
		crsCode int
		crsName string
	)

	cmd := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Create or update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := projects.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			project, err := store.Upsert(cmd.Context(), &projects.Project{
				ID:   args[0],
				Name: name,
				CRS:  projects.CRS{Code: crsCode, Name: crsName},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), project.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human readable project name")
	cmd.Flags().IntVar(&crsCode, "crs-code", 0, "EPSG code of the surveyed coordinate system")
	cmd.Flags().StringVar(&crsName, "crs-name", "", "Coordinate system display name")
	return cmd
}

func newProjectsListCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := projects.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, project := range list {
				crs := project.CRS.EPSG()
				if crs == "" {
					crs = "-"
				}
				viewer := project.CloudURL
				if viewer == "" {
					viewer = "-"
				}
				rows = append(rows, []string{
					project.ID,
					project.Name,
					crs,
					strconv.FormatInt(project.PointCount, 10),
					viewer,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "NAME", "CRS", "POINTS", "VIEWER"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
