// Package validation provides input validation for configuration and the
// admin API.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection.
//
// # Struct Tag Validation
//
//	type LoginRequest struct {
//	    Password string `json:"password" validate:"required,min=8"`
//	}
//	err := validation.Validate(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("client_endpoint", url)
//	err := v.Validate()
package validation
