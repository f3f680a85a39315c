/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/friendsincode/infoscreen/internal/db"
	"github.com/friendsincode/infoscreen/internal/playlist"
	"github.com/friendsincode/infoscreen/internal/storage"
)

var publishScreen string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish playlists once and exit",
	Long: `Build and publish playlists without starting the server.

Examples:
  # Publish every active infoscreen
  infoscreen publish

  # Publish a single infoscreen
  infoscreen publish --screen 5f0c7d1e-2b1a-4c55-9b43-0e6f3a1b2c3d
`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishScreen, "screen", "", "Infoscreen ID to publish (default: all active screens)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	publisher := playlist.NewPublisher(database, playlist.NewBuilder(cfg.ExpansionPolicy, logger), store, 0, logger)

	if publishScreen != "" {
		manifest, err := publisher.Publish(ctx, publishScreen)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %s version %d (%d slides, %d slots)\n",
			manifest.Infoscreen, manifest.Version, len(manifest.Entries), manifest.TotalSlots)
		return nil
	}

	published, err := publisher.PublishAll(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "published %d playlists\n", published)
	return err
}
