// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refcheck/refcheck/internal/bib"
	"github.com/refcheck/refcheck/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "List and inspect research sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List session files in the session directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		summaries, err := session.List(sessionDir())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		fmt.Printf("%-42s %-7s %-20s %s\n", "Topic", "Papers", "Updated", "File")
		for _, s := range summaries {
			fmt.Printf("%-42s %-7d %-20s %s\n",
				truncate(s.Topic, 41), s.PaperCount,
				s.UpdatedAt.Format("2006-01-02 15:04"), s.Path)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-file>",
	Short: "Show the records and search log of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cslOut, _ := cmd.Flags().GetBool("csl")
		jsonOut, _ := cmd.Flags().GetBool("json")

		sess, err := session.Load(args[0])
		if err != nil {
			return err
		}
		records := sess.Records()

		if jsonOut {
			return printRecordsJSON(records)
		}
		if cslOut {
			return bib.FormatCSL(records, cmd.OutOrStdout())
		}

		fmt.Printf("Topic: %s\n", sess.Topic)
		fmt.Printf("Created: %s, updated: %s\n",
			sess.CreatedAt.Format("2006-01-02"), sess.UpdatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("Searches: %d, papers: %d, citation graph nodes: %d\n\n",
			len(sess.Searches), len(sess.Papers), len(sess.CitationGraph))

		for _, entry := range sess.Searches {
			fmt.Printf("  %s  %-16s %q (%d results)\n",
				entry.Timestamp.Format("2006-01-02 15:04"), entry.Source, entry.Query, entry.ResultCount)
		}
		fmt.Println()
		printRecordTable(records)
		return nil
	},
}

func init() {
	sessionShowCmd.Flags().Bool("csl", false, "output records as CSL-YAML")
	sessionShowCmd.Flags().Bool("json", false, "output records as JSON")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}
