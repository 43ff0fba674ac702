package registry

import "fmt"

// StringParam extracts a required string from an invocation's params.
func StringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required param %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q must be a string, got %T", key, v)
	}
	return s, nil
}

// OptionalStringParam extracts a string param, falling back to a default.
func OptionalStringParam(params map[string]any, key, fallback string) (string, error) {
	v, ok := params[key]
	if !ok {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q must be a string, got %T", key, v)
	}
	return s, nil
}
