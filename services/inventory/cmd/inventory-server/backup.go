package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inventoryd/pkg/db"
	gos3 "inventoryd/pkg/s3"
	"inventoryd/services/backup"
	"inventoryd/services/inventory"
)

func newBackupCommand(flags *globalFlags) *cobra.Command {
	var (
		outputDir  string
		recipients []string
		bucket     string
		prefix     string
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a compressed, optionally encrypted snapshot of the inventory database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, logger, err := flags.load(ctx)
			if err != nil {
				return err
			}

			gdb, err := db.Open(ctx, db.Config{Path: cfg.DBPath, MaxOpenConns: 1})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() {
				if err := db.Close(gdb); err != nil {
					logger.Error().Err(err).Msg("close database")
				}
			}()
			store, err := inventory.NewStore(gdb)
			if err != nil {
				return err
			}

			runCfg := backup.Config{
				OutputDir:  outputDir,
				Recipients: recipients,
				Bucket:     bucket,
				Prefix:     prefix,
				Stdout:     cmd.OutOrStdout(),
			}
			if bucket != "" {
				s3Cfg, err := gos3.ConfigFromEnv(ctx, nil)
				if err != nil {
					return fmt.Errorf("s3 config: %w", err)
				}
				client, err := gos3.NewClient(ctx, s3Cfg)
				if err != nil {
					return fmt.Errorf("s3 client: %w", err)
				}
				runCfg.Uploader = client
			}

			manifest, err := backup.Run(ctx, store, runCfg)
			if err != nil {
				return err
			}
			logger.Info().
				Str("id", manifest.ID).
				Str("file", manifest.File).
				Int64("laptops", manifest.Laptops).
				Int64("checkins", manifest.Checkins).
				Msg("backup complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "out", "", "Directory to write the archive and manifest to")
	cmd.Flags().StringSliceVar(&recipients, "age-recipient", nil, "age public key to encrypt the archive to (repeatable)")
	cmd.Flags().StringVar(&bucket, "s3-bucket", "", "Upload the archive to this bucket using the S3_* environment")
	cmd.Flags().StringVar(&prefix, "s3-prefix", "inventory", "Key prefix for uploaded archives")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newRestoreCommand() *cobra.Command {
	var (
		archive      string
		output       string
		identityFile string
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Extract a backup archive into a new database file",
		RunE: func(cmd *cobra.Command, args []string) error {
			restoreCfg := backup.RestoreConfig{Archive: archive, Output: output}

			if identityFile != "" {
				ids, err := backup.ReadIdentities(identityFile)
				if err != nil {
					return fmt.Errorf("read identities: %w", err)
				}
				restoreCfg.Identities = ids
			}
			if manifestPath != "" {
				data, err := os.ReadFile(manifestPath)
				if err != nil {
					return fmt.Errorf("read manifest: %w", err)
				}
				manifest, err := backup.ParseManifest(data)
				if err != nil {
					return err
				}
				restoreCfg.ExpectedSHA256 = manifest.SHA256
			}

			if err := backup.Restore(restoreCfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", archive, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&archive, "in", "", "Archive written by the backup command")
	cmd.Flags().StringVar(&output, "out", "", "Database file to create; must not exist")
	cmd.Flags().StringVar(&identityFile, "identity-file", "", "age identity file for encrypted archives")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Manifest to verify the archive digest against")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
