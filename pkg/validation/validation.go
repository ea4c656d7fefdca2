package validation

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/insightdeck/insightdeck/pkg/pagination"
)

var v *validator.Validate

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	if v == nil {
		v = validator.New()
		// Custom: uploaded file name must carry a supported extension
		_ = v.RegisterValidation("upload_ext", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return false
			}
			s = strings.ToLower(s)
			return strings.HasSuffix(s, ".csv") || strings.HasSuffix(s, ".xlsx") || strings.HasSuffix(s, ".xls")
		})
		// Custom: sort direction is asc/desc or empty
		_ = v.RegisterValidation("sortdir", func(fl validator.FieldLevel) bool {
			switch strings.ToLower(strings.TrimSpace(fl.Field().String())) {
			case "", "asc", "desc":
				return true
			}
			return false
		})
		// Custom: cursor must be decodable via pagination.Decode
		_ = v.RegisterValidation("cursor", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			// Quick URL-safe base64 precheck
			if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
				return false
			}
			if _, err := pagination.Decode(s); err != nil {
				return false
			}
			return true
		})
	}
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for API responses. Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("%s is required", field)
			case "upload_ext":
				return "file must be a .csv, .xlsx, or .xls"
			case "sortdir":
				return "dir must be asc or desc"
			case "cursor":
				return "failed to decode cursor; restart pagination from the first page"
			case "url":
				return fmt.Sprintf("%s must be a valid URL", field)
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			}
			return fmt.Sprintf("invalid %s", field)
		}
		return "invalid inputs"
	}
	return ""
}
