package ports

import "surveylab/domain/dataset"

// DatasetReaderPort loads the survey table a pipeline runs over
type DatasetReaderPort interface {
	ReadTable() (*dataset.Table, error)
}
