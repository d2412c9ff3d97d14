package driven

// ConversionNetwork converts payload bytes between named formats by
// chaining registered adapters along the shortest route.
type ConversionNetwork interface {
	// Convert returns data converted from one format to the other.
	// Returns domain.ErrNoConversionPath when the formats are not
	// connected.
	Convert(data []byte, from, to string) ([]byte, error)

	// Path returns the format names along the conversion route,
	// including both endpoints.
	Path(from, to string) ([]string, error)

	// HasFormat reports whether the format is registered.
	HasFormat(name string) bool

	// Formats returns all registered format names in sorted order.
	Formats() []string
}
