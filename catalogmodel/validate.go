package catalogmodel

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	errs "github.com/jrsteele09/go-admin-console/internal/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks v against its validate tags. Failures wrap ErrInvalidRequest.
func Validate(v any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidRequest, err)
	}
	return nil
}
