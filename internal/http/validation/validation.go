package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type FieldErrors map[string]string

// FromBindError converts a bind/validation error into a field->message map.
// dst is the bound struct pointer (needed to read the json tags).
func FromBindError(err error, dst any) FieldErrors {
	out := FieldErrors{}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			key := fieldKey(dst, fe.StructField())
			out[key] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	// other bind errors (type mismatch etc)
	out["_"] = "Dados da requisição inválidos."
	return out
}

func fieldKey(dst any, structField string) string {
	t := reflect.TypeOf(dst)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return strings.ToLower(structField)
	}

	f, ok := t.FieldByName(structField)
	if !ok {
		return strings.ToLower(structField)
	}
	tag := f.Tag.Get("json")
	if tag == "" {
		return strings.ToLower(structField)
	}
	if i := strings.Index(tag, ","); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" || tag == "-" {
		return strings.ToLower(structField)
	}
	return tag
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "Este campo é obrigatório."
	case "email":
		return "Informe um e-mail válido."
	case "min":
		return "Deve ter no mínimo " + param + " caracteres."
	case "max":
		return "Deve ter no máximo " + param + " caracteres."
	case "gt":
		return "Deve ser maior que " + param + "."
	case "gte":
		return "Deve ser maior ou igual a " + param + "."
	case "uuid":
		return "Identificador inválido."
	case "dive":
		return "Valor inválido."
	default:
		return "Valor inválido."
	}
}
