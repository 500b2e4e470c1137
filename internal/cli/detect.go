package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/veil-sh/veil/internal/config"
	"github.com/veil-sh/veil/internal/detect"
	"github.com/veil-sh/veil/internal/output"
	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/providers"
	"github.com/veil-sh/veil/internal/semantic"
)

// Shared detection flags
var (
	flagTypes          string
	flagProvider       string
	flagModel          string
	flagFormat         string
	flagOut            string
	flagRules          string
	flagSemanticURL    string
	flagDocumentID     string
	flagPage           int
	flagNoLLM          bool
	flagFailOnFindings bool
)

func addDetectFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagTypes, "types", "", "PII types to detect (comma-separated, default: all)")
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider (anthropic, openai, gemini, ollama)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Custom rules file path (YAML)")
	cmd.Flags().StringVar(&flagSemanticURL, "semantic-url", "", "Semantic index base URL")
	cmd.Flags().StringVar(&flagDocumentID, "document-id", "", "Document ID for semantic index scoping")
	cmd.Flags().IntVar(&flagPage, "page", 0, "Page number to stamp on detected entities")
	cmd.Flags().BoolVar(&flagNoLLM, "no-llm", false, "Pattern detection only, no generative passes")
	cmd.Flags().BoolVar(&flagFailOnFindings, "fail-on-findings", false, "Exit non-zero when entities are found")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagProvider != "" {
		m["provider"] = flagProvider
	}
	if flagModel != "" {
		m["model"] = flagModel
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagRules != "" {
		m["rulesFile"] = flagRules
	}
	if flagSemanticURL != "" {
		m["semanticURL"] = flagSemanticURL
	}
	return m
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func parseTypes(s string) ([]pii.Type, error) {
	if s == "" {
		return nil, nil
	}
	var types []pii.Type
	for _, part := range splitComma(s) {
		t := pii.Type(strings.ToUpper(part))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown PII type: %s", part)
		}
		types = append(types, t)
	}
	return types, nil
}

// readInput reads the document from the argument path, or stdin when no
// path is given.
func readInput(args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

// buildEngine assembles the detection engine from the effective config.
func buildEngine(cfg config.Config) (*detect.Engine, error) {
	engineCfg := detect.Config{MaxTextBytes: cfg.MaxTextBytes}

	if !flagNoLLM {
		completer, err := providers.New(cfg.Provider, cfg.Model)
		if err != nil {
			return nil, err
		}
		engineCfg.Completer = completer
	}

	if cfg.Semantic.URL != "" {
		engineCfg.Index = semantic.NewClient(cfg.Semantic.URL, cfg.Semantic.APIKey)
	}

	rules, err := detect.LoadRulesFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	engineCfg.CustomRules = rules

	return detect.New(engineCfg), nil
}

func runDetection(cfg config.Config, text string) ([]pii.Entity, int64, error) {
	engine, err := buildEngine(cfg)
	if err != nil {
		return nil, 0, err
	}

	types, err := parseTypes(flagTypes)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	entities, err := engine.DetectAll(context.Background(), text, detect.Options{
		Types:      types,
		DocumentID: flagDocumentID,
		PageNumber: flagPage,
	})
	if err != nil {
		return nil, 0, err
	}
	return entities, time.Since(start).Milliseconds(), nil
}

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Detect PII in a document and emit a redaction plan",
	Long:  "Detect scans the given file (or stdin) for personally identifiable information and writes a redaction plan in the configured output format.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}

		text, err := readInput(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

		entities, totalMs, err := runDetection(cfg, text)
		if err != nil {
			if providers.IsAuthError(err) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exitCode = ExitAuthError
				return nil
			}
			if detect.IsInputError(err) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exitCode = ExitUsageError
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		report := detect.BuildReport(entities, flagDocumentID, 0, totalMs)
		if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		if flagFailOnFindings && report.Summary.Total > 0 {
			exitCode = ExitFindings
		}
		return nil
	},
}

var maskCmd = &cobra.Command{
	Use:   "mask [file]",
	Short: "Detect PII and print the masked text",
	Long:  "Mask runs the detection pipeline and prints the document with every detected value replaced by its masked form.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}

		text, err := readInput(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitUsageError
			return nil
		}

		entities, _, err := runDetection(cfg, text)
		if err != nil {
			if providers.IsAuthError(err) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				exitCode = ExitAuthError
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		fmt.Fprint(os.Stdout, detect.ApplyPlan(text, entities))
		return nil
	},
}

func init() {
	addDetectFlags(detectCmd)
	addDetectFlags(maskCmd)
}
