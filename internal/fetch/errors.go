package fetch

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for errors.Is checks on Outcome.Err.
var (
	ErrRetrieval = errors.New("retrieval failed")
	ErrDecode    = errors.New("decode failed")
)

// RetrievalError is a transport failure or non-success status for one dataset.
type RetrievalError struct {
	Name   string
	URL    string
	Status int // HTTP status when the server answered, 0 otherwise
	Err    error
}

func (e *RetrievalError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("retrieving %s from %s: status %d", e.Name, e.URL, e.Status)
	}
	return fmt.Sprintf("retrieving %s from %s: %v", e.Name, e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error        { return e.Err }
func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

// DecodeError means the payload was not a GeoJSON feature collection.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error        { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
