package directory

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// phonePattern accepts local and international numbers once separators are stripped.
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// profileValidator checks ProfileUpdate payloads and reports failures by json field name.
type profileValidator struct {
	validate *validator.Validate
}

func newProfileValidator() *profileValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("branch", func(fl validator.FieldLevel) bool {
		return slices.Contains(Branches, fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &profileValidator{validate: v}
}

// normalizeProfileUpdate trims free text, strips phone separators and upper-cases the branch.
func normalizeProfileUpdate(in ProfileUpdate) ProfileUpdate {
	out := in
	out.Phone = phoneSeparators.Replace(strings.TrimSpace(in.Phone))
	out.Branch = strings.ToUpper(strings.TrimSpace(in.Branch))
	out.ResumeURL = strings.TrimSpace(in.ResumeURL)
	out.GitHubURL = strings.TrimSpace(in.GitHubURL)
	out.LinkedInURL = strings.TrimSpace(in.LinkedInURL)
	return out
}

// check returns a *ValidationError describing the first failing field.
func (v *profileValidator) check(in ProfileUpdate) error {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: "invalid profile"}
	}
	return &ValidationError{Message: fieldMessage(fieldErrs[0])}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "phone":
		return fmt.Sprintf("%s must be 7 to 15 digits with an optional leading +", field)
	case "branch":
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(Branches, ", "))
	case "gte", "lte":
		return fmt.Sprintf("%s must be between 0 and 10", field)
	case "http_url":
		return fmt.Sprintf("%s must be an http or https URL", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
