package config

import "github.com/go-playground/validator/v10"

// NewValidator returns the validator shared by handlers and services.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
