// Package backend turns the application config into the concrete storage,
// directory and mirror adapters.
package backend

import (
	"errors"
	"fmt"

	"yesan/internal/core"
	"yesan/internal/sheets"
	"yesan/internal/storage"
)

// CleanupFunc releases a resource acquired by the factory.
type CleanupFunc func() error

// DirectorySources are the sheets behind the academy directory.
type DirectorySources struct {
	Data   sheets.TableSource
	Title  sheets.TitleSource
	Secret sheets.TableSource
}

// Backend bundles everything the server and worker are built from.
type Backend struct {
	Repository storage.Repository
	Budget     core.Budget
	Directory  DirectorySources
	// Mirror is nil when no mirror is configured.
	Mirror sheets.MirrorStore

	cleanups []CleanupFunc
}

// Close runs the cleanups in reverse order and joins their errors.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close backend: %w", errors.Join(errs...))
	}
	return nil
}
