// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/notebook-engine/internal/records"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List, show, and export past runs",
	Long: `Records reads the SQLite history of successful runs kept at
records.db_path. Use subcommands to list runs, show one, or export its
notebook or outline again.`,
}

// --- list subcommand ---

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE:  runRecordsList,
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	store, err := openRecords()
	if err != nil {
		return err
	}
	defer store.Close()

	query, _ := cmd.Flags().GetString("query")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(context.Background(), records.ListOptions{
		Query:  query,
		Status: types.RunStatus(status),
		Limit:  limit,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-40s  %-12s  %s\n", "ID", "Created", "Title", "Difficulty", "Score")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 122))
	for _, r := range runs {
		title := r.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-40s  %-12s  %d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), title, r.Difficulty, r.QualityScore)
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var recordsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsShow,
}

func runRecordsShow(cmd *cobra.Command, args []string) error {
	store, err := openRecords()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Printf("ID:         %s\n", rec.ID)
	fmt.Printf("Title:      %s\n", rec.Title)
	fmt.Printf("Subject:    %s\n", rec.Subject)
	fmt.Printf("Difficulty: %s\n", rec.Difficulty)
	fmt.Printf("Status:     %s\n", rec.Status)
	fmt.Printf("Score:      %d/100\n", rec.QualityScore)
	fmt.Printf("Created:    %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Sections:   %d\n", len(rec.Sections))
	for _, s := range rec.Sections {
		fmt.Printf("  %2d. %s\n", s.Number, s.Title)
	}
	return nil
}

// --- export subcommand ---

var recordsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a stored run's notebook or outline",
	Long: `Export writes the stored notebook (.ipynb JSON) or, with --outline, the
stored outline (YAML) of a run to --output or stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordsExport,
}

func runRecordsExport(cmd *cobra.Command, args []string) error {
	store, err := openRecords()
	if err != nil {
		return err
	}
	defer store.Close()

	outlineOnly, _ := cmd.Flags().GetBool("outline")
	output, _ := cmd.Flags().GetString("output")

	w := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if outlineOnly {
		err = store.ExportOutline(context.Background(), args[0], w)
	} else {
		err = store.ExportNotebook(context.Background(), args[0], w)
	}
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
	}
	return nil
}

// --- shared helpers ---

func openRecords() (*records.Store, error) {
	var cfg types.RecordsConfig
	if err := viper.UnmarshalKey("records", &cfg); err != nil {
		return nil, fmt.Errorf("decoding records config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("records.db_path is not set")
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("no run records at %s: %w", cfg.DBPath, err)
	}
	return records.NewStore(cfg)
}

func init() {
	recordsListCmd.Flags().String("query", "", "filter by title or subject substring")
	recordsListCmd.Flags().String("status", "", "filter by status: success, failed")
	recordsListCmd.Flags().Int("limit", 50, "maximum number of runs")
	recordsListCmd.Flags().Bool("json", false, "output results as JSON")

	recordsShowCmd.Flags().Bool("json", false, "output the full record as JSON")

	recordsExportCmd.Flags().Bool("outline", false, "export the outline instead of the notebook")
	recordsExportCmd.Flags().String("output", "", "output path (default stdout)")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsExportCmd)
	rootCmd.AddCommand(recordsCmd)
}
