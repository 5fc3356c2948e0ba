// Package validation wraps go-playground/validator for request bodies.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report json names, not Go field names
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	return get().Struct(v)
}

// Errors maps each failing field to the tag it failed on.
func Errors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Namespace()[strings.IndexByte(fe.Namespace(), '.')+1:]] = fe.Tag()
	}
	return out
}

// Body parses the request body into dst and validates it. Failures come back
// as 400 fiber errors.
func Body(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Corpo da requisição inválido")
	}
	if err := Struct(dst); err != nil {
		fields := Errors(err)
		if len(fields) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s (%s)", k, fields[k]))
		}
		return fiber.NewError(fiber.StatusBadRequest, "Campos inválidos: "+strings.Join(parts, ", "))
	}
	return nil
}
