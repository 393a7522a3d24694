package main

import (
	"fmt"
	"log"
	"os"

	"surveylab/adapters/excel"
	"surveylab/adapters/graphviz"
	"surveylab/adapters/markdown"
	"surveylab/adapters/stats/ols"
	"surveylab/adapters/stats/sem"
	"surveylab/app"
	"surveylab/domain/dataset"
	"surveylab/internal"
	"surveylab/internal/config"
	"surveylab/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:           "surveylab",
		Short:         "Segmented regression and SEM hypothesis reports for survey spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (SURVEYLAB_* env vars override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ERROR|WARN|INFO|DEBUG|TRACE (overrides log.level)")

	rootCmd.AddCommand(
		newOLSCmd(),
		newSEMCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ [%s] %v\n", errors.GetCode(err), err)
		if errors.HasCode(err, errors.CodeConfigInvalid) {
			fmt.Fprintln(os.Stderr, "  run 'surveylab <command> --help' for the flags and their config keys")
		}
		os.Exit(1)
	}
}

// commonFlags are shared by both pipelines; zero values mean "use config"
type commonFlags struct {
	dataFile     string
	sheet        string
	summaryDir   string
	segmentBy    string
	segment      bool
	order        string
	filterColumn string
	filterValues []string
	html         bool
	manifest     bool
}

func (f *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.dataFile, "data", "", "input spreadsheet (.xlsx or .csv)")
	fs.StringVar(&f.sheet, "sheet", "", "worksheet name (default first sheet)")
	fs.StringVar(&f.summaryDir, "summary-dir", "", "directory for result workbooks")
	fs.StringVar(&f.segmentBy, "segment-by", "", "segmentation column")
	fs.BoolVar(&f.segment, "segment", false, "enable or disable segmentation (--segment=false)")
	fs.StringVar(&f.order, "segment-order", "", "sorted|first-seen")
	fs.StringVar(&f.filterColumn, "filter-column", "", "column used to exclude rows")
	fs.StringSliceVar(&f.filterValues, "filter-values", nil, "values of --filter-column to exclude")
	fs.BoolVar(&f.html, "html", false, "also write an HTML summary")
	fs.BoolVar(&f.manifest, "manifest", false, "also write a JSON run manifest")
}

func (f *commonFlags) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("data") {
		cfg.Paths.DataFile = f.dataFile
	}
	if fs.Changed("sheet") {
		cfg.Paths.Sheet = f.sheet
	}
	if fs.Changed("summary-dir") {
		cfg.Paths.SummaryDir = f.summaryDir
	}
	if fs.Changed("segment-by") {
		cfg.Segmentation.Column = f.segmentBy
	}
	if fs.Changed("segment") {
		enabled := f.segment
		cfg.Segmentation.Enabled = &enabled
	}
	if fs.Changed("segment-order") {
		order, err := dataset.ParseSegmentOrder(f.order)
		if err != nil {
			return err
		}
		cfg.Segmentation.Order = order
	}
	if fs.Changed("filter-column") {
		cfg.Filter.Column = f.filterColumn
	}
	if fs.Changed("filter-values") {
		cfg.Filter.Values = f.filterValues
	}
	if fs.Changed("html") {
		cfg.Report.HTML = f.html
	}
	if fs.Changed("manifest") {
		cfg.Report.Manifest = f.manifest
	}
	return nil
}

// loadConfig reads the config file and env, then applies the log level
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(level))
	return cfg, nil
}

func newOLSCmd() *cobra.Command {
	var common commonFlags
	var yColumn string
	var prefixes []string
	var threshold float64

	cmd := &cobra.Command{
		Use:   "ols",
		Short: "Run per-segment OLS regressions and refit the significant predictors overall",
		Long: `Fit an OLS regression of the dependent column on every column matching the
predictor prefixes, once per segment. Terms with p <= threshold are reported per
segment; their union is refit on the whole filtered dataset.

Example: surveylab ols --data data/TAM_DEF.xlsx --segment-by Generation --prefix VAR`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if err := common.apply(fs, cfg); err != nil {
				return err
			}
			if fs.Changed("y") {
				cfg.OLS.YColumn = yColumn
			}
			if fs.Changed("prefix") {
				cfg.OLS.XPrefixes = prefixes
			}
			if fs.Changed("pvalue") {
				cfg.OLS.PValueThreshold = threshold
			}
			if err := cfg.ValidateOLS(); err != nil {
				return err
			}

			req := app.OLSRequestFromConfig(cfg)
			svc := app.NewOLSService(
				excel.NewDataReader(cfg.Paths.DataFile, cfg.Paths.Sheet),
				ols.NewEstimator(),
				excel.NewReportWriter(),
				markdown.NewHTMLWriter(),
			)
			result, err := svc.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Printf("✓ %d of %d segment(s) fitted in %dms\n", result.Fitted, len(result.Segments), result.RuntimeMs)
			fmt.Printf("  Overall predictors: %v\n", result.Predictors)
			printIssues(result.Issues)
			printOutputs(result.Outputs)
			return nil
		},
	}

	common.register(cmd.Flags())
	cmd.Flags().StringVar(&yColumn, "y", "", "dependent column (overrides ols.y_column)")
	cmd.Flags().StringSliceVar(&prefixes, "prefix", nil, "predictor column prefixes, regular expressions anchored at the start")
	cmd.Flags().Float64Var(&threshold, "pvalue", 0, "significance threshold (overrides ols.pvalue_threshold)")
	return cmd
}

func newSEMCmd() *cobra.Command {
	var common commonFlags
	var modelFile string
	var hypothesesFile string
	var chartsDir string
	var dotBinary string
	var includeEstimates bool

	cmd := &cobra.Command{
		Use:   "sem",
		Short: "Fit a structural equation model per segment and check path hypotheses",
		Long: `Fit the configured SEM per segment, draw a path diagram for each fit and
report every hypothesis as Accepted (|z| > 1.96), Rejected or Path Not Found.

Example: surveylab sem --config surveylab.yaml --model-file model.txt --hypotheses hypotheses.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if err := common.apply(fs, cfg); err != nil {
				return err
			}
			if fs.Changed("model-file") {
				data, err := os.ReadFile(modelFile)
				if err != nil {
					return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("read model file: %w", err))
				}
				cfg.SEM.Model = string(data)
			}
			if fs.Changed("hypotheses") {
				hyps, err := config.LoadHypothesesFile(hypothesesFile)
				if err != nil {
					return err
				}
				cfg.SEM.Hypotheses = hyps
			}
			if fs.Changed("charts-dir") {
				cfg.Paths.ChartsDir = chartsDir
			}
			if fs.Changed("dot") {
				cfg.SEM.DotBinary = dotBinary
			}
			if fs.Changed("include-estimates") {
				cfg.SEM.IncludeEstimates = includeEstimates
			}
			if err := cfg.ValidateSEM(); err != nil {
				return err
			}

			req, err := app.SEMRequestFromConfig(cfg)
			if err != nil {
				return err
			}
			svc := app.NewSEMService(
				excel.NewDataReader(cfg.Paths.DataFile, cfg.Paths.Sheet),
				sem.NewEstimator(),
				graphviz.NewRenderer(cfg.SEM.DotBinary, cfg.Paths.ChartsDir),
				excel.NewReportWriter(),
				markdown.NewHTMLWriter(),
			)
			result, err := svc.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Printf("✓ %d of %d segment(s) fitted in %dms\n", result.Fitted, len(result.Segments), result.RuntimeMs)
			for _, v := range result.Verdicts {
				fmt.Printf("  %-20s %-40s %s\n", v.Segment, v.Hypothesis.Label, v.Status)
			}
			printIssues(result.Issues)
			printOutputs(append(result.Diagrams, result.Outputs...))
			return nil
		},
	}

	common.register(cmd.Flags())
	cmd.Flags().StringVar(&modelFile, "model-file", "", "file holding the model description")
	cmd.Flags().StringVar(&hypothesesFile, "hypotheses", "", "YAML list of {label, path} hypotheses (replaces sem.hypotheses)")
	cmd.Flags().StringVar(&chartsDir, "charts-dir", "", "directory for path diagrams")
	cmd.Flags().StringVar(&dotBinary, "dot", "", "Graphviz dot executable")
	cmd.Flags().BoolVar(&includeEstimates, "include-estimates", false, "add Parameter Estimates and Fit Statistics sheets")
	return cmd
}

func printIssues(issues []app.SegmentIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Printf("⚠ %d segment issue(s):\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("  - %s\n", issue)
	}
}

func printOutputs(paths []string) {
	for _, p := range paths {
		fmt.Printf("  → %s\n", p)
	}
}
