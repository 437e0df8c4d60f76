package ports

// Resolver defines the interface for resolving import specifiers to canonical
// unit IDs.
//
//go:generate mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type Resolver interface {
	// Resolve maps a specifier written in fromDir to a canonical unit ID
	// relative to the project root. It is a pure function of the specifier,
	// the importing directory, and the resolution rules; the same inputs
	// always produce the same result.
	//
	// Specifiers that do not start with "./", "../" or "/" resolve as
	// external references: Resolve returns the specifier unchanged and
	// external=true, and the unit is never bundled.
	//
	// When a local specifier matches no existing file, Resolve returns a
	// non-nil error together with the root-relative ID the specifier would
	// occupy, so callers can track the dangling reference.
	Resolve(specifier, fromDir string) (id string, external bool, err error)
}
