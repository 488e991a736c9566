/*
Package arena is a library for cataloguing and caching the CFA creature and
spell animations shipped with The Elder Scrolls: Arena.
*/
package arena

import (
	"log"
	"path/filepath"
	"strings"
)

const defaultWorkers = 10

// Arena scans asset directories and records every animation it can decode
// in an AssetDB.
type Arena struct {
	db      *AssetDB
	logger  *log.Logger
	workers int
}

// New returns an Arena that catalogues into db using up to workers
// goroutines, or a default number if workers is less than one.
func New(db *AssetDB, logger *log.Logger, workers int) *Arena {
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Arena{
		db:      db,
		logger:  logger,
		workers: workers,
	}
}

func isCFA(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".cfa")
}

// assetName is the key an animation is stored under, its path relative to
// root using forward slashes. Arena filenames are case insensitive.
func assetName(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	return strings.ToUpper(filepath.ToSlash(rel))
}
