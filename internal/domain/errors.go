// Package domain contains custom error types for the application.
package domain

import (
	"errors"
	"fmt"
)

// Base errors
var (
	ErrMissingDataset          = errors.New("dataset missing or unparseable")
	ErrUnresolvedEntity        = errors.New("no matching region, crop or animal category")
	ErrOutOfRangeRank          = errors.New("rank exceeds available rows")
	ErrCollaboratorUnavailable = errors.New("generative collaborator unavailable")
	ErrMalformedUpload         = errors.New("uploaded content is not a table")
	ErrInvalidParameter        = errors.New("parameter out of range")
)

// DatasetError represents a failure to load one of the flat tables
type DatasetError struct {
	Table string
	Path  string
	Err   error
}

func (e *DatasetError) Error() string {
	return fmt.Sprintf("dataset error [table=%s, path=%s]: %v", e.Table, e.Path, e.Err)
}

func (e *DatasetError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMissingDataset) match every dataset error
func (e *DatasetError) Is(target error) bool {
	return target == ErrMissingDataset
}

// NewDatasetError creates a new DatasetError
func NewDatasetError(table, path string, err error) *DatasetError {
	return &DatasetError{
		Table: table,
		Path:  path,
		Err:   err,
	}
}

// UploadError represents a rejected upload
type UploadError struct {
	Filename string
	Reason   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload error [file=%s]: %s", e.Filename, e.Reason)
}

func (e *UploadError) Unwrap() error {
	return ErrMalformedUpload
}

// NewUploadError creates a new UploadError
func NewUploadError(filename, reason string) *UploadError {
	return &UploadError{
		Filename: filename,
		Reason:   reason,
	}
}
