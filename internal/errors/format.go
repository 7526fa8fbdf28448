package errors

import "errors"

// LogAttrs flattens an error into slog key-value pairs. Typed errors
// contribute their code, category, and retryability; details are prefixed
// so they cannot collide with the fixed keys.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var se *SupaError
	if !errors.As(err, &se) {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error", se.Message,
		"error_code", se.Code,
		"category", string(se.Category),
		"retryable", se.Retryable,
	}
	if se.Cause != nil {
		attrs = append(attrs, "cause", se.Cause.Error())
	}
	for k, v := range se.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
