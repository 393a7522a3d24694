package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"surveylab/adapters/excel"
	"surveylab/adapters/graphviz"
	"surveylab/adapters/markdown"
	"surveylab/adapters/stats/ols"
	"surveylab/adapters/stats/sem"
	"surveylab/app"
	"surveylab/domain/core"
	"surveylab/domain/dataset"
	"surveylab/domain/run"
	"surveylab/domain/verdict"
	"surveylab/internal/testkit"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "surveylab-dev",
		Short: "SurveyLab development tools",
	}

	rootCmd.AddCommand(
		newSeedCmd(),
		newSmokeTestCmd(),
		newVerifyCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSeedCmd() *cobra.Command {
	var out, sheet, configFile string
	var respondents int
	var seed int64
	var missingRate float64
	var likert bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a synthetic segmented survey (.xlsx or .csv)",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := testkit.DefaultSurveyConfig()
			if configFile != "" {
				data, err := os.ReadFile(configFile)
				if err != nil {
					return fmt.Errorf("failed to read generator config: %w", err)
				}
				if err := yaml.Unmarshal(data, &config); err != nil {
					return fmt.Errorf("failed to parse generator config: %w", err)
				}
			}
			fs := cmd.Flags()
			if fs.Changed("respondents") {
				config.RespondentsPerSegment = respondents
			}
			if fs.Changed("seed") {
				config.Seed = seed
			}
			if fs.Changed("missing-rate") {
				config.MissingRate = missingRate
			}
			if fs.Changed("likert") {
				config.Likert = likert
			}
			return generateSeedData(config, out, sheet)
		},
	}

	cmd.Flags().StringVar(&out, "out", "data/survey.xlsx", "output file; the extension picks the format")
	cmd.Flags().StringVar(&sheet, "sheet", "Responses", "worksheet name for .xlsx output")
	cmd.Flags().StringVar(&configFile, "generator", "", "YAML generator config (defaults to a two-generation survey)")
	cmd.Flags().IntVar(&respondents, "respondents", 0, "respondents per segment")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().Float64Var(&missingRate, "missing-rate", 0, "share of predictor cells left blank")
	cmd.Flags().BoolVar(&likert, "likert", false, "round predictors to a 1..7 scale")
	return cmd
}

func newSmokeTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run both pipelines against freshly generated data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmokeTests(cmd.Context())
		},
	}
	return cmd
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [manifest]",
		Short: "Check that a run manifest still matches its input file and settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyManifest(args[0])
		},
	}
	return cmd
}

func generateSeedData(config testkit.SurveyGeneratorConfig, out, sheet string) error {
	fmt.Println("Generating survey data...")

	table := testkit.NewSurveyGenerator(config).Generate()
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch strings.ToLower(filepath.Ext(out)) {
	case ".csv":
		err = testkit.WriteCSV(table, out)
	case ".xlsx":
		err = testkit.WriteXLSX(table, out, sheet)
	default:
		return fmt.Errorf("unsupported output extension %q (use .xlsx or .csv)", filepath.Ext(out))
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Printf("Wrote %d respondents x %d columns to %s\n", table.RowCount(), table.ColumnCount(), out)
	return nil
}

func runSmokeTests(ctx context.Context) error {
	fmt.Println("Running smoke tests...")

	dir, err := os.MkdirTemp("", "surveylab-smoke-")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "survey.xlsx")
	config := testkit.DefaultSurveyConfig()
	config.Predictors = append(config.Predictors, "PU")
	config.Effects[testkit.AllSegments] = map[string]float64{"PU": 0.8}
	if err := testkit.WriteXLSX(testkit.NewSurveyGenerator(config).Generate(), input, "Responses"); err != nil {
		return fmt.Errorf("failed to write smoke data: %w", err)
	}

	tests := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"ols_segmented", func(ctx context.Context) error {
			svc := app.NewOLSService(excel.NewDataReader(input, ""), ols.NewEstimator(), excel.NewReportWriter(), markdown.NewHTMLWriter())
			result, err := svc.Run(ctx, app.OLSRequest{
				InputPath:       input,
				Segmentation:    dataset.PartitionOptions{Enabled: true, Column: config.SegmentColumn, Order: dataset.OrderSorted},
				YColumn:         config.Outcome,
				XPrefixes:       []string{"VAR", "PU"},
				PValueThreshold: 0.05,
				OutputPath:      filepath.Join(dir, "summary", "Regression_Results.xlsx"),
				Outputs:         app.OutputOptions{ManifestPath: filepath.Join(dir, "summary", "ols_manifest.json")},
			})
			if err != nil {
				return err
			}
			if result.Fitted != len(config.Segments) {
				return fmt.Errorf("fitted %d of %d segments", result.Fitted, len(config.Segments))
			}
			return verifyManifest(filepath.Join(dir, "summary", "ols_manifest.json"))
		}},
		{"sem_hypotheses", func(ctx context.Context) error {
			path, err := verdict.ParsePath(config.Outcome + " ~ PU")
			if err != nil {
				return err
			}
			renderer := graphviz.NewRenderer("dot", filepath.Join(dir, "charts"))
			svc := app.NewSEMService(excel.NewDataReader(input, ""), sem.NewEstimator(), renderer, excel.NewReportWriter(), markdown.NewHTMLWriter())
			result, err := svc.Run(ctx, app.SEMRequest{
				InputPath:         input,
				Model:             fmt.Sprintf("%s ~ PU + VAR1 + VAR2", config.Outcome),
				Hypotheses:        []verdict.Hypothesis{{Label: "H1", Path: path}},
				DependentVariable: config.Outcome,
				PValueThreshold:   0.05,
				OutputPath:        filepath.Join(dir, "summary", "SEM_Results.xlsx"),
			})
			if err != nil {
				return err
			}
			if len(result.Verdicts) != 1 || result.Verdicts[0].Status != verdict.StatusAccepted {
				return fmt.Errorf("expected H1 to be accepted, got %+v", result.Verdicts)
			}
			return nil
		}},
	}

	passed := 0
	for _, test := range tests {
		fmt.Printf("  Running %s...", test.name)
		if err := test.fn(ctx); err != nil {
			fmt.Printf(" FAILED: %v\n", err)
		} else {
			fmt.Println(" PASSED")
			passed++
		}
	}

	fmt.Printf("\nSmoke tests: %d/%d passed\n", passed, len(tests))
	if passed < len(tests) {
		return fmt.Errorf("some smoke tests failed")
	}

	return nil
}

func verifyManifest(path string) error {
	manifest, err := run.ReadManifest(path)
	if err != nil {
		return err
	}
	if err := manifest.Validate(); err != nil {
		return err
	}
	fmt.Printf("Verifying run %s (%s)...\n", manifest.RunID, manifest.Pipeline)

	datasetHash, err := core.HashFile(manifest.InputPath)
	if err != nil {
		return fmt.Errorf("failed to hash input %s: %w", manifest.InputPath, err)
	}
	if datasetHash != manifest.Fingerprint.DatasetHash {
		return fmt.Errorf("input changed: dataset hash %s, manifest has %s",
			datasetHash.Short(), manifest.Fingerprint.DatasetHash.Short())
	}

	replay := run.NewRunFingerprint(datasetHash, core.ComputeSettingsHash(manifest.Settings), manifest.Fingerprint.CodeVersion)
	if replay.Fingerprint != manifest.Fingerprint.Fingerprint {
		return fmt.Errorf("fingerprints differ: %s vs %s", replay.Fingerprint.Short(), manifest.Fingerprint.Fingerprint.Short())
	}

	for _, output := range manifest.Outputs {
		if _, err := os.Stat(output); err != nil {
			return fmt.Errorf("output %s is missing", output)
		}
	}

	fmt.Println("✓ Manifest matches input and settings")
	return nil
}
