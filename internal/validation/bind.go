package validation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// FieldError is one failed rule in the response envelope.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// BindAndValidate binds JSON body into `out` and runs validation.
// If either step fails, it writes a 400 envelope and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Invalid request body",
			"error":   "ValidationError",
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Validation failed",
			"error":   "ValidationError",
			"errors":  validationErrors(err),
		})
		return err
	}
	return nil
}

func validationErrors(err error) []FieldError {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: fe.Error(),
		})
	}
	return out
}

// fieldPath drops the root struct name: "CreateOrderRequest.Items[0].Size" -> "Items[0].Size".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
