package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MaFalana/HWC-POTREE-API/internal/config"
)

func newConfigCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or scaffold configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCommand(cctx))
	cmd.AddCommand(newConfigShowCommand(cctx))
	return cmd
}

func newConfigInitCommand(cctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if cctx.configFlag != nil {
				path = *cctx.configFlag
			}
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigShowCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config file:       %s\n", cctx.configPath)
			fmt.Fprintf(out, "staging dir:       %s\n", cfg.Paths.StagingDir)
			fmt.Fprintf(out, "log dir:           %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "database:          %s\n", cfg.DatabasePath())
			fmt.Fprintf(out, "storage backend:   %s\n", cfg.Storage.Backend)
			fmt.Fprintf(out, "storage bucket:    %s\n", cfg.Storage.Bucket)
			fmt.Fprintf(out, "storage prefix:    %s\n", cfg.Storage.Prefix)
			fmt.Fprintf(out, "url ttl:           %dh\n", cfg.Storage.URLTTLHours)
			fmt.Fprintf(out, "poll interval:     %ds\n", cfg.Worker.PollInterval)
			fmt.Fprintf(out, "cleanup interval:  %ds\n", cfg.Worker.CleanupInterval)
			fmt.Fprintf(out, "retention:         %dh\n", cfg.Worker.RetentionHours)
			fmt.Fprintf(out, "pdal binary:       %s\n", cfg.Tools.PDALBinary)
			fmt.Fprintf(out, "potree converter:  %s\n", cfg.Tools.PotreeConverter)
			return nil
		},
	}
}
