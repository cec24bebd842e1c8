package chipreg

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validator10() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New() })
	return validate
}

// Check validates params against s, field by field, using
// go-playground/validator's ad hoc Var() check for each declared tag. It
// returns a ChipInvalidInput-kinded error carrying one FieldIssue per
// violation (spec §4.4 ChipTask step, §7).
func (s Schema) Check(params map[string]any) error {
	var issues []rcerrors.FieldIssue

	for name, spec := range s.Fields {
		val, present := params[name]
		if !present {
			if spec.Required {
				issues = append(issues, rcerrors.FieldIssue{Field: name, Constraint: "required"})
			}
			continue
		}
		if spec.Tag == "" {
			continue
		}
		if err := validator10().Var(val, spec.Tag); err != nil {
			issues = append(issues, rcerrors.FieldIssue{Field: name, Constraint: spec.Tag})
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &rcerrors.Error{
		Kind:    rcerrors.KindChipInvalidInput,
		Message: "schema validation failed",
		Issues:  issues,
	}
}
