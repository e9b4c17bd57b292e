// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/refcheck/refcheck/internal/library"
	"github.com/refcheck/refcheck/internal/session"
	"github.com/refcheck/refcheck/pkg/types"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Archive and query the local record library",
	Long: `Library maintains a local full-text-indexed archive of records. Records
from sessions are imported with "library store"; "library query" searches
the archive and "library export" writes it out as YAML or JSON.`,
}

var libraryStoreCmd = &cobra.Command{
	Use:   "store <session-file...>",
	Short: "Import the records of one or more sessions into the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		var total library.StoreSummary
		for _, path := range args {
			sess, err := session.Load(path)
			if err != nil {
				return fmt.Errorf("loading session %s: %w", path, err)
			}
			summary, err := store.StoreRecords(ctx, sess.Records())
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d added, %d merged, %d failed\n",
				filepath.Base(path), summary.Added, summary.Merged, summary.Failed)
			total.Added += summary.Added
			total.Merged += summary.Merged
			total.Failed += summary.Failed
		}
		if len(args) > 1 {
			fmt.Printf("Total: %d added, %d merged, %d failed\n",
				total.Added, total.Merged, total.Failed)
		}
		return nil
	},
}

var libraryQueryCmd = &cobra.Command{
	Use:   "query [search-terms]",
	Short: "Search the library by full text, year, and source",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOut, _ := cmd.Flags().GetBool("json")

		store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Retrieve(context.Background(), library.QueryOptions{
			Query:      strings.Join(args, " "),
			Year:       year,
			Source:     source,
			MaxResults: limit,
		})
		if err != nil {
			return err
		}

		if jsonOut {
			return printRecordsJSON(records)
		}
		printRecordTable(records)
		return nil
	},
}

var libraryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the library to a YAML or JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		switch format {
		case "yaml":
			err = store.ExportYAML(ctx, library.QueryOptions{})
		case "json":
			err = store.ExportJSON(ctx, library.QueryOptions{})
		default:
			return fmt.Errorf("unknown export format %q: expected yaml or json", format)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Exported library to %s\n",
			filepath.Join(viper.GetString("library.library_dir"), "export."+format))
		return nil
	},
}

func init() {
	libraryQueryCmd.Flags().Int("year", 0, "filter by publication year")
	libraryQueryCmd.Flags().String("source", "", "filter by origin source")
	libraryQueryCmd.Flags().Int("limit", 0, "maximum results (0 uses the configured default)")
	libraryQueryCmd.Flags().Bool("json", false, "output records as JSON")

	libraryExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	libraryCmd.AddCommand(libraryStoreCmd)
	libraryCmd.AddCommand(libraryQueryCmd)
	libraryCmd.AddCommand(libraryExportCmd)
	rootCmd.AddCommand(libraryCmd)
}

func openLibrary() (*library.Store, error) {
	cfg := types.LibraryConfig{
		LibraryDir: viper.GetString("library.library_dir"),
		MaxResults: viper.GetInt("sources.max_results"),
	}
	return library.NewStore(cfg, matchPolicy())
}
