package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// a budget range must not be inverted
	v.RegisterStructValidation(budgetStructValidation, BudgetRequest{})

	return v
}

func budgetStructValidation(sl validatorv10.StructLevel) {
	b := sl.Current().Interface().(BudgetRequest)
	if b.Min > 0 && b.Max > 0 && b.Min > b.Max {
		sl.ReportError(b.Max, "max", "Max", "budget_range", fmt.Sprintf("min %.2f > max %.2f", b.Min, b.Max))
	}
}
