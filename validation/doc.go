// Package validation checks chat payloads and configuration.
//
// Struct tags cover request payloads:
//
//	type Message struct {
//	    Role    string `json:"role" validate:"required,oneof=system user assistant tool"`
//	    Content string `json:"content"`
//	}
//	err := validation.Validate(msg)
//
// Programmatic checks cover configuration that tags express poorly:
//
//	v := validation.New()
//	v.Required("base_url", cfg.BaseURL).URL("base_url", cfg.BaseURL)
//	if err := v.Validate(); err != nil { ... }
//
// Both return *errors.AppError with code INVALID_INPUT and a "fields" detail.
package validation
