package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema marks a record that lacks an identifying or required field.
	ErrSchema = errors.New("schema error")
	// ErrImputation marks a feature column without a trainable fill value.
	ErrImputation = errors.New("imputation error")
	// ErrTraining marks a degenerate training set or a failed model fit.
	ErrTraining = errors.New("training error")
	// ErrUnknownCategory marks a building type unseen when the encoding was fit.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrMergeMismatch marks an unlabeled record without a scored row.
	ErrMergeMismatch = errors.New("merge mismatch")
	// ErrArtifact marks an unreadable or incompatible model bundle.
	ErrArtifact = errors.New("artifact error")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
