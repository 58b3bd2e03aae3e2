package registry

import "fmt"

// RegistryError reports a non-2xx, non-not-modified provider response.
// It is scoped to one dependency's check; batch callers count it and
// continue with the remaining dependencies.
type RegistryError struct {
	Provider   string
	Identifier string
	StatusCode int
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s registry returned status %d for %q", e.Provider, e.StatusCode, e.Identifier)
}
