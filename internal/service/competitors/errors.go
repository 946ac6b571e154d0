package competitors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("invalid competitor profile")
	ErrAlreadyRegistered   = errors.New("email already registered as competitor")
	ErrNotFound            = errors.New("competitor not found")
	ErrNoFiles             = errors.New("no files uploaded")
	ErrTooManyFiles        = errors.New("too many files")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("only PDF, ZIP, DOC, DOCX, JPEG, JPG, and PNG files are allowed")
)

// ValidationError matches ErrValidation and carries the field errors.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %v", ErrValidation, e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

// FileError names the upload that was rejected.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Name, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }
