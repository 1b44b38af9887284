package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// MaxNodes bounds device size; observation shapes grow quadratically
	MaxNodes = 1024

	// topologyPattern matches the built-in device names
	topologyPattern = regexp.MustCompile(`^(t|h|grid:[1-9][0-9]*x[1-9][0-9]*|line:[1-9][0-9]*)$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("probability", func(fl validator.FieldLevel) bool {
		v := fl.Field().Float()
		return !math.IsNaN(v) && v >= 0 && v < 1
	})
	_ = validate.RegisterValidation("topology", func(fl validator.FieldLevel) bool {
		return topologyPattern.MatchString(fl.Field().String())
	})
}

// Struct validates v against its struct tags and reports every failing
// field.
func Struct(v any) error {
	if v == nil {
		return errors.New("value to validate cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateTopologyName checks a built-in device name such as "t" or
// "grid:3x4".
func ValidateTopologyName(name string) error {
	if !topologyPattern.MatchString(name) {
		return fmt.Errorf("topology %q is not one of t, h, grid:RxC, line:N", name)
	}
	return nil
}

// ValidateEdges checks an explicit coupling list for a device with
// numNodes nodes.
func ValidateEdges(numNodes int, edges [][2]int) error {
	if numNodes <= 0 || numNodes > MaxNodes {
		return fmt.Errorf("node count %d outside [1, %d]", numNodes, MaxNodes)
	}
	seen := make(map[[2]int]bool, len(edges))
	for i, e := range edges {
		a, b := e[0], e[1]
		if a < 0 || a >= numNodes || b < 0 || b >= numNodes {
			return fmt.Errorf("edge %d (%d,%d) references a node outside [0, %d)", i, a, b, numNodes)
		}
		if a == b {
			return fmt.Errorf("edge %d is a self-loop on node %d", i, a)
		}
		key := [2]int{min(a, b), max(a, b)}
		if seen[key] {
			return fmt.Errorf("edge %d (%d,%d) is listed twice", i, a, b)
		}
		seen[key] = true
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	errs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			errs = append(errs, fmt.Errorf("%s: field is required", field))
		case "min", "gte":
			errs = append(errs, fmt.Errorf("%s: must be at least %s", field, param))
		case "max", "lte":
			errs = append(errs, fmt.Errorf("%s: must not exceed %s", field, param))
		case "gt":
			errs = append(errs, fmt.Errorf("%s: must be greater than %s", field, param))
		case "lt":
			errs = append(errs, fmt.Errorf("%s: must be less than %s", field, param))
		case "oneof":
			errs = append(errs, fmt.Errorf("%s: must be one of [%s]", field, param))
		case "probability":
			errs = append(errs, fmt.Errorf("%s: must lie in [0, 1)", field))
		case "topology":
			errs = append(errs, fmt.Errorf("%s: unknown device %q", field, e.Value()))
		default:
			errs = append(errs, fmt.Errorf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return errors.Join(errs...)
}
