package dto

import (
	"regexp"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var safeKeyRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("safe_key", validateSafeKey)
	}
}

// validateSafeKey allows alphanumeric, underscore, dash, and dot. Setting
// keys and operator names share the character set.
func validateSafeKey(fl validator.FieldLevel) bool {
	return safeKeyRe.MatchString(fl.Field().String())
}

// ParseDate accepts RFC 3339 timestamps and bare dates.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
