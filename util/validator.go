package util

import "github.com/go-playground/validator/v10"

// Validate is the shared validator instance.
var Validate *validator.Validate

func InitValidator() {
	Validate = validator.New()
}
