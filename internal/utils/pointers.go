package utils

// GetOrDefault returns the value if the pointer is not nil, otherwise returns the default value
func GetOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr == nil {
		return defaultVal
	}
	return *ptr
}

// ToPtr returns a pointer to a copy of v.
func ToPtr[T any](v T) *T {
	return &v
}

// ClonePtr returns a pointer to a copy of *ptr, or nil.
func ClonePtr[T any](ptr *T) *T {
	if ptr == nil {
		return nil
	}
	return ToPtr(*ptr)
}
