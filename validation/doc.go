// Package validation validates request values and reports failures as
// *errors.AppError with per-field details.
//
// Struct tags cover request bodies:
//
//	type PublishRequest struct {
//	    Type string `json:"type" validate:"required,max=64"`
//	}
//	err := validation.Validate(req)
//
// The Validator collector covers values that are not structs, such as
// query parameters:
//
//	err := validation.New().Range("limit", limit, 1, 100).Validate()
package validation
