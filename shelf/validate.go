package shelf

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"bookshelf/library"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("thumbnail", func(fl validator.FieldLevel) bool {
		return library.IsThumbnailRef(fl.Field().String())
	})
	return v
}

// cleanFields trims the candidate and validates it.
func cleanFields(f library.BookFields) (library.BookFields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Authors = strings.TrimSpace(f.Authors)
	f.Thumbnail = strings.TrimSpace(f.Thumbnail)
	if err := validate.Struct(f); err != nil {
		return f, toValidationError(err)
	}
	return f, nil
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func checkCredentials(email, password string, minPassword int) error {
	c := credentials{Email: strings.TrimSpace(email), Password: password}
	if err := validate.Struct(c); err != nil {
		return toValidationError(err)
	}
	if minPassword > 0 {
		if err := validate.Var(password, fmt.Sprintf("min=%d", minPassword)); err != nil {
			return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPassword)}
		}
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "email":
		msg = "must be a valid email address"
	case "thumbnail":
		msg = "must be an http(s) URL or an inlined image"
	default:
		msg = "is invalid"
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}
