package app

import (
	"path/filepath"
	"strings"

	"surveylab/domain/dataset"
	"surveylab/internal/config"
)

// OLSRequestFromConfig builds a regression request; segmentation defaults to on
func OLSRequestFromConfig(cfg *config.Config) OLSRequest {
	outputPath := filepath.Join(cfg.Paths.SummaryDir, cfg.OLS.OutputFile(cfg.Segmentation.Column))
	return OLSRequest{
		InputPath:       cfg.Paths.DataFile,
		Filter:          FilterSpec{Column: cfg.Filter.Column, Values: cfg.Filter.Values},
		Segmentation:    partitionOptions(cfg, true),
		YColumn:         cfg.OLS.YColumn,
		XPrefixes:       cfg.OLS.XPrefixes,
		PValueThreshold: cfg.OLS.PValueThreshold,
		OutputPath:      outputPath,
		Outputs:         outputOptions(cfg, outputPath),
	}
}

// SEMRequestFromConfig builds a SEM request; segmentation defaults to off
func SEMRequestFromConfig(cfg *config.Config) (SEMRequest, error) {
	hypotheses, err := cfg.SEM.ParsedHypotheses()
	if err != nil {
		return SEMRequest{}, err
	}
	outputPath := filepath.Join(cfg.Paths.SummaryDir, cfg.SEM.OutputFile)
	return SEMRequest{
		InputPath:         cfg.Paths.DataFile,
		Filter:            FilterSpec{Column: cfg.Filter.Column, Values: cfg.Filter.Values},
		Segmentation:      partitionOptions(cfg, false),
		Model:             cfg.SEM.Model,
		Hypotheses:        hypotheses,
		DependentVariable: cfg.SEM.DependentVariable,
		PValueThreshold:   cfg.SEM.PValueThreshold,
		OutputPath:        outputPath,
		IncludeEstimates:  cfg.SEM.IncludeEstimates,
		Outputs:           outputOptions(cfg, outputPath),
	}, nil
}

func partitionOptions(cfg *config.Config, enabledByDefault bool) dataset.PartitionOptions {
	return dataset.PartitionOptions{
		Enabled: cfg.Segmentation.EnabledOr(enabledByDefault),
		Column:  cfg.Segmentation.Column,
		Order:   cfg.Segmentation.Order,
	}
}

// outputOptions places the side outputs next to the workbook, sharing its base name
func outputOptions(cfg *config.Config, workbook string) OutputOptions {
	base := strings.TrimSuffix(workbook, filepath.Ext(workbook))
	var out OutputOptions
	if cfg.Report.HTML {
		out.HTMLPath = base + ".html"
	}
	if cfg.Report.Manifest {
		out.ManifestPath = base + "_manifest.json"
	}
	return out
}
