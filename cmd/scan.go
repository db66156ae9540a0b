package cmd

import (
	"context"
	"fmt"

	"cursor-harvest/internal"
	"github.com/spf13/cobra"
)

var scanRefresh bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan workspace databases and persist a snapshot",
	Long: `Scan every workspace storage database, rebuild the recoverable chats
and persist the result as a snapshot for later list/show commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := internal.NewStoreReader()
		locator := internal.NewWorkspaceLocator(storagePath)
		pipeline := internal.NewPipeline(reader, locator)

		storeDir, err := internal.DefaultStoreDir()
		if err != nil {
			return err
		}
		store := internal.NewFileStore(storeDir)

		if scanRefresh {
			// Forced full refresh: discard pooled handles, caches and
			// the previous snapshot before re-deriving from scratch.
			reader.CloseAll()
			if err := store.RemoveData(internal.SnapshotKey); err != nil {
				internal.LogWarn("Failed to clear snapshot: %v", err)
			}
		}

		result, err := pipeline.Run(context.Background())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		defer reader.CloseAll()

		if err := store.SaveData(internal.SnapshotKey, result); err != nil {
			return fmt.Errorf("failed to persist snapshot: %w", err)
		}

		fmt.Printf("Scanned %d database(s): %d record(s) seen, %d chat record(s), %d system record(s)\n",
			result.Stats.DatabasesScanned, result.Stats.TotalRecords,
			result.Stats.ChatRecords, result.Stats.SystemRecords)
		fmt.Printf("Recovered %d project(s), %d chat(s)\n", len(result.Projects), len(result.Chats))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanRefresh, "refresh", false, "Discard caches and the previous snapshot first")
}
