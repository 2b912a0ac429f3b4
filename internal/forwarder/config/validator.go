package config

import (
	"fmt"
	"strings"

	"rask-log-stack/pkg/apperror"
)

// validator accumulates every validation failure so Load reports all of
// them in one error rather than failing on the first, matching
// ConfigValidator's accumulate-then-report shape in the teacher's
// internal/config/config.go.
type validator struct {
	messages []string
}

func (v *validator) addf(format string, args ...interface{}) {
	v.messages = append(v.messages, fmt.Sprintf(format, args...))
}

func (v *validator) result() error {
	if len(v.messages) == 0 {
		return nil
	}
	err := apperror.New(apperror.CodeConfigValidation, "config", "validate", strings.Join(v.messages, "; "))
	return err.WithSeverity(apperror.SeverityCritical)
}
