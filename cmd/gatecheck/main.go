// Command gatecheck runs quality gates against generated content and
// shows how gate guidance is injected into prompt templates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahrav/go-gatekeeper/internal/domain"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	gatesDir    string
	metricsPath string
	verbose     bool
}

// errGatesFailed turns failing gates into a non-zero exit status.
type errGatesFailed struct{ failed int }

func (e errGatesFailed) Error() string { return fmt.Sprintf("%d gate(s) failed", e.failed) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:           "gatecheck",
		Short:         "Validate LLM output against quality gates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "service config file (YAML)")
	root.PersistentFlags().StringVarP(&opts.gatesDir, "gates", "g", "", "gate definition directory, overrides gates.directory")
	root.PersistentFlags().StringVar(&opts.metricsPath, "metrics-file", "", "write Prometheus metrics to this file on exit")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newValidateCmd(&opts),
		newEnhanceCmd(&opts),
		newListCmd(&opts),
	)
	return root
}

// withEngine builds the engine, runs fn and tears the engine down.
func withEngine(cmd *cobra.Command, opts *globalOptions, fn func(*engine) error) (err error) {
	e, err := newEngine(cmd.Context(), *opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.close(opts.metricsPath); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(e)
}

func newValidateCmd(opts *globalOptions) *cobra.Command {
	var (
		gateIDs     []string
		contentPath string
		maxAttempts int
		attempt     int
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate content against gates and print the results as JSON",
		Example: `  gatecheck validate -g ./gates --gate seo-gate --gate style --content draft.md
  cat draft.md | gatecheck validate -g ./gates --gate seo-gate --content -`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, err := readInput(contentPath)
			if err != nil {
				return err
			}
			return withEngine(cmd, opts, func(e *engine) error {
				results, err := e.validator.ValidateGates(cmd.Context(), gateIDs, domain.ValidationContext{Content: content})
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}

				retry := e.validator.ShouldRetry(results, attempt, maxAttempts)
				e.logger.Info("validation finished",
					zap.Int("gates", len(results)),
					zap.Bool("should_retry", retry))
				if failed := countFailed(results); failed > 0 {
					return errGatesFailed{failed: failed}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&gateIDs, "gate", nil, "gate id to run (repeatable)")
	cmd.Flags().StringVar(&contentPath, "content", "-", "file with the content to validate, - for stdin")
	cmd.Flags().IntVar(&attempt, "attempt", 1, "current generation attempt")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 3, "attempt budget used for the retry decision")
	_ = cmd.MarkFlagRequired("gate")
	return cmd
}

func newEnhanceCmd(opts *globalOptions) *cobra.Command {
	var (
		gateIDs      []string
		templatePath string
		contentPath  string
		category     string
		framework    string
	)

	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Inject gate guidance into a prompt template and optionally validate content",
		RunE: func(cmd *cobra.Command, _ []string) error {
			template, err := readInput(templatePath)
			if err != nil {
				return err
			}
			content, err := readInput(contentPath)
			if err != nil {
				return err
			}
			return withEngine(cmd, opts, func(e *engine) error {
				ectx := domain.EnhancementContext{Category: category, Framework: framework}
				if content != "" {
					ectx.Validation = &domain.ValidationContext{Content: content}
				}
				prompt := domain.Prompt{ID: "cli", Category: category, UserMessageTemplate: template}

				result := e.semantic.Enhance(cmd.Context(), prompt, gateIDs, ectx)
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringSliceVar(&gateIDs, "gate", nil, "gate id to apply (repeatable)")
	cmd.Flags().StringVar(&templatePath, "template", "", "file with the user message template, - for stdin")
	cmd.Flags().StringVar(&contentPath, "content", "", "file with generated content to validate")
	cmd.Flags().StringVar(&category, "category", "", "prompt category")
	cmd.Flags().StringVar(&framework, "framework", "", "methodology framework hint")
	return cmd
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the gate ids found in the gate directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, opts, func(e *engine) error {
				ids, err := e.store.ListGateIDs(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func countFailed(results []domain.ValidationResult) int {
	failed := 0
	for i := range results {
		if !results[i].Passed {
			failed++
		}
	}
	return failed
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
