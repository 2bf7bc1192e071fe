package params

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jdziat/durable-training-queue/pkg/core"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a normalized record. A record without any data-source
// reference fails with core.ErrMissingDataSource; struct constraint
// violations wrap core.ErrInvalidParams.
func Validate(p core.JobParams) error {
	if !p.HasDataSource() {
		return core.ErrMissingDataSource
	}
	if err := validatorInstance().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", core.ErrInvalidParams, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidParams, err)
	}
	return nil
}
