package ports

import (
	"surveylab/domain/dataset"
	"surveylab/domain/regression"
	"surveylab/domain/sem"
)

// OLSFitterPort fits a linear regression of y on predictors (plus a constant)
type OLSFitterPort interface {
	FitTable(t *dataset.Table, y string, predictors []string) (*regression.Fit, error)
}

// SEMFitterPort fits a structural equation model written in the model syntax
type SEMFitterPort interface {
	// CheckModel rejects a model description that cannot be parsed
	CheckModel(source string) error
	FitModel(source string, t *dataset.Table) (*sem.Fit, error)
}
