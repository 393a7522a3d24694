package config

import (
	"fmt"
	"os"
	"strings"

	"surveylab/domain/dataset"
	"surveylab/domain/verdict"
	"surveylab/internal/errors"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. SURVEYLAB_OLS_Y_COLUMN
const EnvPrefix = "SURVEYLAB"

// SegmentationPlaceholder is replaced by the segmentation column in output templates
const SegmentationPlaceholder = "{segmentation_column}"

// Config represents the complete application configuration
type Config struct {
	Paths        PathConfig
	Segmentation SegmentationConfig
	Filter       FilterConfig
	OLS          OLSConfig
	SEM          SEMConfig
	Report       ReportConfig
	Log          LogConfig
}

// PathConfig holds file system paths
type PathConfig struct {
	DataFile   string
	Sheet      string
	SummaryDir string
	ChartsDir  string
}

// SegmentationConfig selects how rows are split into segments.
// Enabled is nil when unset so each pipeline can apply its own default.
type SegmentationConfig struct {
	Enabled *bool
	Column  string
	Order   dataset.SegmentOrder
}

// EnabledOr returns the configured switch, or def when unset
func (s SegmentationConfig) EnabledOr(def bool) bool {
	if s.Enabled == nil {
		return def
	}
	return *s.Enabled
}

// FilterConfig excludes rows before segmentation
type FilterConfig struct {
	Column string
	Values []string
}

// OLSConfig holds the segmented regression settings
type OLSConfig struct {
	PValueThreshold float64
	YColumn         string
	XPrefixes       []string
	OutputTemplate  string
}

// OutputFile resolves the output template for a segmentation column
func (c OLSConfig) OutputFile(segmentationColumn string) string {
	return strings.ReplaceAll(c.OutputTemplate, SegmentationPlaceholder, segmentationColumn)
}

// HypothesisConfig is one labelled path as written in config files
type HypothesisConfig struct {
	Label string `mapstructure:"label" yaml:"label"`
	Path  string `mapstructure:"path" yaml:"path"`
}

// SEMConfig holds the structural equation model settings
type SEMConfig struct {
	Model             string
	ModelFile         string
	Hypotheses        []HypothesisConfig
	HypothesesFile    string
	PValueThreshold   float64 // recorded only; significance is |z| > 1.96
	DependentVariable string
	OutputFile        string
	IncludeEstimates  bool
	DotBinary         string
}

// ParsedHypotheses validates every configured path
func (c SEMConfig) ParsedHypotheses() ([]verdict.Hypothesis, error) {
	out := make([]verdict.Hypothesis, 0, len(c.Hypotheses))
	for _, h := range c.Hypotheses {
		parsed, err := verdict.NewHypothesis(h.Label, h.Path)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

// ReportConfig toggles the optional side outputs
type ReportConfig struct {
	HTML     bool
	Manifest bool
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load reads defaults, the optional YAML file at cfgFile and SURVEYLAB_* environment variables
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("read config %s: %w", cfgFile, err))
		}
	}

	config := &Config{
		Paths:  *loadPathConfig(v),
		Filter: *loadFilterConfig(v),
		OLS:    *loadOLSConfig(v),
		Report: ReportConfig{HTML: v.GetBool("report.html"), Manifest: v.GetBool("report.manifest")},
		Log:    LogConfig{Level: v.GetString("log.level")},
	}

	segConfig, err := loadSegmentationConfig(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load segmentation configuration")
	}
	config.Segmentation = *segConfig

	semConfig, err := loadSEMConfig(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load SEM configuration")
	}
	config.SEM = *semConfig

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.data_file", "data/TAM_DEF.xlsx")
	v.SetDefault("paths.sheet", "")
	v.SetDefault("paths.summary_dir", "summary")
	v.SetDefault("paths.charts_dir", "charts")
	v.SetDefault("segmentation.column", "Generation")
	v.SetDefault("segmentation.order", string(dataset.OrderSorted))
	v.SetDefault("filter.column", "")
	v.SetDefault("ols.pvalue_threshold", 0.05)
	v.SetDefault("ols.y_column", "Yvar_USE_AI_Work")
	v.SetDefault("ols.x_prefixes", []string{"VAR"})
	v.SetDefault("ols.output_template", "Regression_Results_"+SegmentationPlaceholder+"_Detailed.xlsx")
	v.SetDefault("sem.model", "")
	v.SetDefault("sem.model_file", "")
	v.SetDefault("sem.hypotheses_file", "")
	v.SetDefault("sem.pvalue_threshold", 0.05)
	v.SetDefault("sem.dependent_variable", "Yvar_USE_AI_Work")
	v.SetDefault("sem.output_file", "SEM_Results.xlsx")
	v.SetDefault("sem.include_estimates", false)
	v.SetDefault("sem.dot_binary", "dot")
	v.SetDefault("report.html", false)
	v.SetDefault("report.manifest", false)
	v.SetDefault("log.level", "INFO")
}

func loadPathConfig(v *viper.Viper) *PathConfig {
	return &PathConfig{
		DataFile:   v.GetString("paths.data_file"),
		Sheet:      v.GetString("paths.sheet"),
		SummaryDir: v.GetString("paths.summary_dir"),
		ChartsDir:  v.GetString("paths.charts_dir"),
	}
}

func loadSegmentationConfig(v *viper.Viper) (*SegmentationConfig, error) {
	order, err := dataset.ParseSegmentOrder(v.GetString("segmentation.order"))
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	cfg := &SegmentationConfig{
		Column: v.GetString("segmentation.column"),
		Order:  order,
	}
	if v.IsSet("segmentation.enabled") {
		enabled := v.GetBool("segmentation.enabled")
		cfg.Enabled = &enabled
	}
	return cfg, nil
}

func loadFilterConfig(v *viper.Viper) *FilterConfig {
	return &FilterConfig{
		Column: v.GetString("filter.column"),
		Values: stringList(v.Get("filter.values")),
	}
}

func loadOLSConfig(v *viper.Viper) *OLSConfig {
	return &OLSConfig{
		PValueThreshold: v.GetFloat64("ols.pvalue_threshold"),
		YColumn:         v.GetString("ols.y_column"),
		XPrefixes:       stringList(v.Get("ols.x_prefixes")),
		OutputTemplate:  v.GetString("ols.output_template"),
	}
}

func loadSEMConfig(v *viper.Viper) (*SEMConfig, error) {
	cfg := &SEMConfig{
		Model:             v.GetString("sem.model"),
		ModelFile:         v.GetString("sem.model_file"),
		HypothesesFile:    v.GetString("sem.hypotheses_file"),
		PValueThreshold:   v.GetFloat64("sem.pvalue_threshold"),
		DependentVariable: v.GetString("sem.dependent_variable"),
		OutputFile:        v.GetString("sem.output_file"),
		IncludeEstimates:  v.GetBool("sem.include_estimates"),
		DotBinary:         v.GetString("sem.dot_binary"),
	}

	if err := v.UnmarshalKey("sem.hypotheses", &cfg.Hypotheses); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("sem.hypotheses: %w", err))
	}

	if cfg.Model == "" && cfg.ModelFile != "" {
		data, err := os.ReadFile(cfg.ModelFile)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("read sem.model_file: %w", err))
		}
		cfg.Model = string(data)
	}

	if cfg.HypothesesFile != "" {
		extra, err := LoadHypothesesFile(cfg.HypothesesFile)
		if err != nil {
			return nil, err
		}
		cfg.Hypotheses = append(cfg.Hypotheses, extra...)
	}
	return cfg, nil
}

// LoadHypothesesFile reads a YAML list of {label, path} entries
func LoadHypothesesFile(path string) ([]HypothesisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("read hypotheses file: %w", err))
	}
	var out []HypothesisConfig
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parse hypotheses file %s: %w", path, err))
	}
	return out, nil
}

func validateConfig(config *Config) error {
	if config.Paths.DataFile == "" {
		return errors.ConfigInvalid("paths.data_file is required")
	}
	if config.Paths.SummaryDir == "" {
		return errors.ConfigInvalid("paths.summary_dir is required")
	}
	if err := validateFilter(config.Filter); err != nil {
		return err
	}
	if err := validateThreshold("ols.pvalue_threshold", config.OLS.PValueThreshold); err != nil {
		return err
	}
	if err := validateThreshold("sem.pvalue_threshold", config.SEM.PValueThreshold); err != nil {
		return err
	}
	if _, err := config.SEM.ParsedHypotheses(); err != nil {
		return err
	}
	return nil
}

func validateFilter(filter FilterConfig) error {
	if filter.Column == "" && len(filter.Values) > 0 {
		return errors.ConfigInvalid("filter.values given without filter.column")
	}
	return nil
}

func validateThreshold(key string, v float64) error {
	if !(v > 0 && v <= 1) {
		return errors.ConfigInvalid(fmt.Sprintf("%s must be in (0, 1], got %g", key, v))
	}
	return nil
}

// ValidateOLS checks the settings only the regression pipeline needs. It is
// called after command-line overrides, so shared checks are repeated here.
func (c *Config) ValidateOLS() error {
	if err := validateFilter(c.Filter); err != nil {
		return err
	}
	if err := validateThreshold("ols.pvalue_threshold", c.OLS.PValueThreshold); err != nil {
		return err
	}
	if c.OLS.YColumn == "" {
		return errors.ConfigInvalid("ols.y_column is required")
	}
	if len(c.OLS.XPrefixes) == 0 {
		return errors.ConfigInvalid("ols.x_prefixes must list at least one prefix")
	}
	if c.OLS.OutputTemplate == "" {
		return errors.ConfigInvalid("ols.output_template is required")
	}
	if c.Segmentation.EnabledOr(true) && c.Segmentation.Column == "" {
		return errors.ConfigInvalid("segmentation.column is required when segmentation is enabled")
	}
	return nil
}

// ValidateSEM checks the settings only the SEM pipeline needs
func (c *Config) ValidateSEM() error {
	if err := validateFilter(c.Filter); err != nil {
		return err
	}
	if err := validateThreshold("sem.pvalue_threshold", c.SEM.PValueThreshold); err != nil {
		return err
	}
	if strings.TrimSpace(c.SEM.Model) == "" {
		return errors.ConfigInvalid("sem.model or sem.model_file is required")
	}
	if c.SEM.OutputFile == "" {
		return errors.ConfigInvalid("sem.output_file is required")
	}
	if c.Paths.ChartsDir == "" {
		return errors.ConfigInvalid("paths.charts_dir is required")
	}
	if c.Segmentation.EnabledOr(false) && c.Segmentation.Column == "" {
		return errors.ConfigInvalid("segmentation.column is required when segmentation is enabled")
	}
	return nil
}

// stringList accepts a YAML list or a comma separated string (as env vars arrive)
func stringList(raw interface{}) []string {
	var items []string
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		items = strings.Split(val, ",")
	case []string:
		items = val
	case []interface{}:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = []string{fmt.Sprint(val)}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
