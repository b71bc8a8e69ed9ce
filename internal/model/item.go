package model

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Item is the single resource exposed by the API. Optional fields are nil
// when absent and serialize as null.
type Item struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name" validate:"nonblank,max=255"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	RollNumber  *string `json:"rollNumber" validate:"omitempty,max=255"`
	ClassName   *string `json:"className" validate:"omitempty,max=255"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,max=255"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,max=255,weburl"`
}

// ItemFields is the set of client-writable fields. A nil field was not
// supplied. Anything a client sends outside this set is dropped on decode.
type ItemFields struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	RollNumber  *string `json:"rollNumber"`
	ClassName   *string `json:"className"`
	PhoneNumber *string `json:"phoneNumber"`
	ImageURL    *string `json:"imageUrl"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
		return isWebURL(fl.Field().String())
	})

	return v
}

// isWebURL reports whether s is an absolute http or https URL with a host.
func isWebURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

// Apply merges the supplied fields into the item. An empty string clears an
// optional field; the name is taken as given and checked by Validate.
func (i *Item) Apply(f ItemFields) {
	if f.Name != nil {
		i.Name = *f.Name
	}
	i.Description = merge(i.Description, f.Description)
	i.RollNumber = merge(i.RollNumber, f.RollNumber)
	i.ClassName = merge(i.ClassName, f.ClassName)
	i.PhoneNumber = merge(i.PhoneNumber, f.PhoneNumber)
	i.ImageURL = merge(i.ImageURL, f.ImageURL)
}

func merge(current, supplied *string) *string {
	if supplied == nil {
		return current
	}
	if *supplied == "" {
		return nil
	}
	v := *supplied
	return &v
}

// Validate checks every field rule and returns one message per failing
// field, in field order. A nil result means the item is valid.
func (i *Item) Validate() []string {
	err := validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, message(fe))
	}
	return messages
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "nonblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "weburl":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
