// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/notebook-engine/internal/audit"
	"github.com/pdiddy/notebook-engine/internal/logging"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

var auditCmd = &cobra.Command{
	Use:   "audit <notebook.ipynb>",
	Short: "Score an existing notebook and check it for compatibility problems",
	Long: `Audit runs the quality scorer and the compatibility checker on a notebook
file. With --fix, a patched copy is written when critical problems are found,
to --output or to <name>.fixed.ipynb next to the input. The input file is
never modified. Cell outputs and metadata the checker does not touch are
kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

// auditResult is the JSON form of an audit run.
type auditResult struct {
	Path          string                    `json:"path"`
	Quality       types.QualityMetrics      `json:"quality_metrics"`
	Compatibility types.CompatibilityResult `json:"compatibility"`
	PatchedPath   string                    `json:"patched_path,omitempty"`
}

func runAudit(cmd *cobra.Command, args []string) error {
	fix, _ := cmd.Flags().GetBool("fix")
	output, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var lc types.LoggingConfig
	if err := viper.UnmarshalKey("logging", &lc); err != nil {
		return fmt.Errorf("decoding logging config: %w", err)
	}
	logger := logging.New(lc)

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading notebook: %w", err)
	}
	var nb types.Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	res := auditResult{Path: path}
	res.Quality = audit.QualityScorer{}.Score(&nb)
	compat, patched := audit.NewCompatibilityChecker(logger).Check(&nb)
	res.Compatibility = compat

	if fix && patched != nil {
		if output == "" {
			output = fixedPath(path)
		}
		if err := writeNotebook(output, patched); err != nil {
			return err
		}
		res.PatchedPath = output
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Println(audit.RenderValidationReport(res.Quality, res.Compatibility))
	fmt.Println(audit.RenderQualityReport(res.Quality))
	fmt.Println(audit.RenderCompatibilityReport(res.Compatibility))
	if res.PatchedPath != "" {
		fmt.Printf("Patched notebook written to %s\n", res.PatchedPath)
	} else if patched != nil {
		fmt.Println("Critical problems found; re-run with --fix to write a patched copy.")
	}
	return nil
}

// fixedPath names the patched copy of path: nb.ipynb becomes nb.fixed.ipynb.
func fixedPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".ipynb"
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".fixed" + ext
}

func init() {
	auditCmd.Flags().Bool("fix", false, "write a patched notebook when critical problems are found")
	auditCmd.Flags().String("output", "", "path for the patched notebook (default <name>.fixed.ipynb)")
	auditCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(auditCmd)
}
