package store

import "errors"

var (
	ErrNotFound          = errors.New("template not found")
	ErrDuplicateTemplate = errors.New("duplicate template")
)
