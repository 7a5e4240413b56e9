package export

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIndexNotFound     = errors.New("index not found")
	ErrFieldNotFound     = errors.New("field not found")
	ErrMetaFieldNotFound = errors.New("meta field not found")
	ErrInvalidQuery      = errors.New("invalid query syntax")
	ErrConnection        = errors.New("connection error")
)

type IndexNotFoundError struct {
	Indices []string
	URL     string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("any of index(es) %s does not exist in %s", strings.Join(e.Indices, ", "), e.URL)
}

func (e *IndexNotFoundError) Is(target error) bool {
	return target == ErrIndexNotFound
}

type FieldNotFoundError struct {
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %s doesn't exist in any index", e.Field)
}

func (e *FieldNotFoundError) Is(target error) bool {
	return target == ErrFieldNotFound
}

type MetaFieldNotFoundError struct {
	Field   string
	Allowed []string
}

func (e *MetaFieldNotFoundError) Error() string {
	return fmt.Sprintf("meta field %s is not one of %s", e.Field, strings.Join(e.Allowed, ", "))
}

func (e *MetaFieldNotFoundError) Is(target error) bool {
	return target == ErrMetaFieldNotFound
}

type InvalidQueryError struct {
	Err error
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %v", e.Err)
}

func (e *InvalidQueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}

func (e *InvalidQueryError) Unwrap() error {
	return e.Err
}

// ConnectionError is a network failure that outlived all retries.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to elasticsearch failed during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
