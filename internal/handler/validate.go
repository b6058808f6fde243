package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns the first failed rule into a caller-facing sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request."
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field %s is required.", fe.Field())
	case "email":
		return fmt.Sprintf("Field %s must be a valid email address.", fe.Field())
	case "gte", "gt":
		return fmt.Sprintf("Field %s must be at least %s.", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("Field %s must be at most %s.", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("Field %s is invalid.", fe.Field())
}

// days decodes an interval given either as a JSON number or a numeric string.
type days int

func (d *days) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	var f float64
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return fmt.Errorf("monitoring interval %s is not a number", string(b))
	}
	*d = days(f)
	return nil
}
