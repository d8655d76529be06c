package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"glint/internal/metastore"
	"glint/internal/server"
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the glint synchronization server over stdio",
	Long:         `Serve JSON-RPC over stdin/stdout: LSP document synchronization plus the diagram method family`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	serveCmd.Flags().Bool("no-persist", false, "disable the on-disk layout metadata cache")
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	desc, err := loadDescriptor(settings)
	if err != nil {
		return err
	}
	noPersist, err := cmd.Flags().GetBool("no-persist")
	if err != nil {
		return fmt.Errorf("failed to get no-persist flag: %w", err)
	}

	var store *metastore.Store
	if !noPersist {
		if settings.CacheDir != "" {
			store, err = metastore.OpenDir(settings.CacheDir)
		} else {
			store, err = metastore.Open("glint")
		}
		if err != nil {
			// Persistence is best-effort; the server works without it.
			fmt.Fprintf(os.Stderr, "serve: layout cache unavailable: %v\n", err)
			store = nil
		}
	}

	srv := server.NewServer(os.Stdin, os.Stdout, server.Options{
		Settings:   settings,
		Descriptor: desc,
		Store:      store,
	})
	if err := srv.Run(cmd.Context()); err != nil {
		if errors.Is(err, server.ErrExit) {
			return nil
		}
		if errors.Is(err, server.ErrExitWithoutShutdown) {
			return fmt.Errorf("server exit without shutdown")
		}
		return err
	}
	return nil
}
