package classify

import "errors"

var (
	ErrClassification = errors.New("classification error")
	ErrEmptySeries    = errors.New("annual series is empty")
)
