package ports

import "iter"

// Walker enumerates directories beneath a project root.
//
//go:generate mockgen -source=walker.go -destination=mocks/mock_walker.go -package=mocks
type Walker interface {
	// Dirs yields root and every directory below it in walk order, skipping
	// version control metadata and any directory whose name matches one of
	// the ignore patterns.
	Dirs(root string, ignores []string) iter.Seq[string]
}
