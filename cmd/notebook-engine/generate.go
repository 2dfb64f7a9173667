// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/notebook-engine/internal/audit"
	"github.com/pdiddy/notebook-engine/internal/llm"
	"github.com/pdiddy/notebook-engine/internal/logging"
	"github.com/pdiddy/notebook-engine/internal/pipeline"
	"github.com/pdiddy/notebook-engine/internal/prompt"
	"github.com/pdiddy/notebook-engine/internal/records"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate [subject]",
	Short: "Generate a notebook for a subject",
	Long: `Generate plans an outline for the subject, writes every section, assembles
the notebook, and runs the validation gates. The notebook is written to
--output and a markdown validation report is written next to it.

Sections are checkpointed under coordinator.checkpoint_dir/<run-id>/ as they
finish. Re-run with the same --run-id to resume an interrupted run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)

	subject, _ := cmd.Flags().GetString("subject")
	if len(args) == 1 {
		subject = args[0]
	}
	difficulty, _ := cmd.Flags().GetString("difficulty")
	extra, _ := cmd.Flags().GetString("context")
	maxSections, _ := cmd.Flags().GetInt("max-sections")
	runID, _ := cmd.Flags().GetString("run-id")
	output, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients, err := pipeline.Connect(ctx, cfg, llm.IdentityResolver{}, logger)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithVersion(version),
		pipeline.WithAuditor(clients.Audit, clients.AuditEndpoint),
	}
	if cfg.Prompts.Dir != "" {
		opts = append(opts, pipeline.WithPrompts(prompt.NewLoader(cfg.Prompts.Dir)))
	}
	if cfg.Records.DBPath != "" {
		store, err := records.NewStore(cfg.Records)
		if err != nil {
			logger.Warn().Err(err).Msg("run records disabled")
		} else {
			defer store.Close()
			opts = append(opts, pipeline.WithRecordSink(store))
		}
	}

	p := pipeline.New(cfg, clients.Generation, opts...)
	res := p.Run(ctx, pipeline.Request{
		Subject:     subject,
		Difficulty:  types.Difficulty(strings.ToLower(difficulty)),
		Context:     extra,
		MaxSections: maxSections,
		RunID:       runID,
	})

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if !res.Success {
		if !jsonOutput {
			printFailure(res)
		}
		return fmt.Errorf("generation failed at %s stage", res.Stage)
	}

	if output == "" {
		output = filepath.Join("output", slug(res.Outline.Title)+".ipynb")
	}
	if err := writeNotebook(output, res.Notebook); err != nil {
		return err
	}
	reportPath := strings.TrimSuffix(output, filepath.Ext(output)) + "-report.md"
	if err := os.WriteFile(reportPath, []byte(fullReport(res)), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if !jsonOutput {
		fmt.Printf("Run %s\n", res.RunID)
		fmt.Printf("Notebook: %s (%d cells, %d sections)\n", output, len(res.Notebook.Cells), len(res.Sections))
		fmt.Printf("Report:   %s\n", reportPath)
		fmt.Printf("Quality:  %d/100, QA %s, semantic %s, compatible %t\n",
			res.Quality.Score, res.QA.OverallStatus, res.Semantic.Status, res.Compatibility.Compatible)
		fmt.Printf("Timing:   %.1fs total\n", float64(res.Timings.TotalMs)/1000)
	}
	return nil
}

func printFailure(res *pipeline.Result) {
	fmt.Fprintf(os.Stderr, "Run %s failed at %s: %s\n", res.RunID, res.Stage, res.Reason)
	if res.QA != nil {
		fmt.Fprintln(os.Stderr, audit.RenderQaReport(*res.QA))
	}
	if res.Semantic != nil {
		fmt.Fprintln(os.Stderr, audit.RenderSemanticReport(*res.Semantic))
	}
	if res.RunID != "" && len(res.Sections) > 0 {
		fmt.Fprintf(os.Stderr, "%d sections are checkpointed; re-run with --run-id %s to resume.\n", len(res.Sections), res.RunID)
	}
}

func fullReport(res *pipeline.Result) string {
	parts := []string{
		fmt.Sprintf("# %s\n\nRun `%s`\n", res.Outline.Title, res.RunID),
		audit.RenderValidationReport(*res.Quality, *res.Compatibility),
		audit.RenderQaReport(*res.QA),
		audit.RenderSemanticReport(*res.Semantic),
		audit.RenderQualityReport(*res.Quality),
		audit.RenderCompatibilityReport(*res.Compatibility),
	}
	return strings.Join(parts, "\n")
}

func writeNotebook(path string, nb *types.Notebook) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	data, err := json.MarshalIndent(nb, "", " ")
	if err != nil {
		return fmt.Errorf("marshaling notebook: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing notebook: %w", err)
	}
	return nil
}

// slug turns a title into a lowercase dash-separated file name.
func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "notebook"
	}
	return s
}

func init() {
	generateCmd.Flags().String("subject", "", "subject of the notebook (or pass as argument)")
	generateCmd.Flags().String("difficulty", "beginner", "audience level: beginner, intermediate, advanced")
	generateCmd.Flags().String("context", "", "extra instructions for the outline")
	generateCmd.Flags().Int("max-sections", 0, "generate at most this many sections (0 = all outline steps)")
	generateCmd.Flags().String("run-id", "", "checkpoint run id; reuse to resume an interrupted run")
	generateCmd.Flags().String("output", "", "notebook path (default output/<title>.ipynb)")
	generateCmd.Flags().Bool("json", false, "print the result envelope as JSON")

	generateCmd.Flags().String("model", "", "generation model")
	generateCmd.Flags().String("base-url", "", "chat-completions endpoint root")
	generateCmd.Flags().Int("concurrency", 0, "section workers (0 = 2 for local endpoints, 1 otherwise)")
	generateCmd.Flags().Bool("strict-outline", false, "reject outlines that only validate after padding")
	generateCmd.Flags().Bool("semantic", true, "run the semantic audit")
	_ = viper.BindPFlag("llm.model", generateCmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("llm.base_url", generateCmd.Flags().Lookup("base-url"))
	_ = viper.BindPFlag("coordinator.concurrency", generateCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("outline.strict", generateCmd.Flags().Lookup("strict-outline"))
	_ = viper.BindPFlag("audit.semantic", generateCmd.Flags().Lookup("semantic"))

	rootCmd.AddCommand(generateCmd)
}
