package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/koustreak/ingest/internal/errs"
)

// Opener constructs an Engine for a parsed URL. It must not verify
// reachability; Open does that with a trial connection.
type Opener func(ctx context.Context, u *URL) (Engine, error)

type dialectEntry struct {
	defaultDriver string
	drivers       map[string]Opener
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*dialectEntry)
)

// Register makes an Opener available for dialect+driver. The first driver
// registered for a dialect becomes its default. Dialect packages call this
// from init, so linking a dialect package in is what makes it available.
func Register(dialect, driver string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if open == nil {
		panic("database: Register opener is nil")
	}
	entry, ok := registry[dialect]
	if !ok {
		entry = &dialectEntry{defaultDriver: driver, drivers: make(map[string]Opener)}
		registry[dialect] = entry
	}
	if _, dup := entry.drivers[driver]; dup {
		panic(fmt.Sprintf("database: Register called twice for %s+%s", dialect, driver))
	}
	entry.drivers[driver] = open
}

// Dialects returns the registered dialect+driver pairs, sorted.
func Dialects() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []string
	for d, entry := range registry {
		for drv := range entry.drivers {
			out = append(out, d+"+"+drv)
		}
	}
	sort.Strings(out)
	return out
}

// lookup returns the Opener for the URL's dialect and driver. A dialect or
// driver that is not linked into the binary is a missing dependency.
func lookup(dialect, driver string) (Opener, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	entry, ok := registry[dialect]
	if !ok {
		return nil, errs.New(errs.ErrKindDependencyMissing,
			fmt.Sprintf("no driver available for dialect %q", dialect))
	}
	if driver == "" {
		driver = entry.defaultDriver
	}
	open, ok := entry.drivers[driver]
	if !ok {
		return nil, errs.New(errs.ErrKindDependencyMissing,
			fmt.Sprintf("driver %q is not available for dialect %q", driver, dialect))
	}
	return open, nil
}
