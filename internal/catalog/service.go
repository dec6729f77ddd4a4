package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/localflix/localflix/internal/event"
	"github.com/localflix/localflix/pkg/logger"
	"github.com/rjeczalik/notify"
)

var log = logger.Get("Catalog")

type (
	// Config controls where the library lives and how aggressively it is
	// re-scanned.
	Config struct {
		// LibraryPath is the directory holding the media files to index.
		LibraryPath string `yaml:"library_dir" env:"LIBRARY_DIR" validate:"required"`

		// The service uses a directory watcher, but a 'force' sync is
		// performed on this interval to protect against the watcher
		// failing (or being unavailable on the host platform).
		ForceSyncSeconds int `yaml:"scan_interval" env:"SCAN_INTERVAL" env-default:"3600" validate:"gt=0"`
	}

	// Service owns the library index. It scans on startup, re-scans when
	// the file system reports changes under the library root, and swaps
	// the finished snapshot in atomically so readers are never exposed to
	// a half-built index.
	Service struct {
		config   Config
		eventBus event.EventDispatcher

		indexMu sync.RWMutex
		index   *Index

		scanMu sync.Mutex
	}
)

// New creates a catalog service rooted at the configured library path.
//
// The library path is validated to be an existing directory. If the
// directory is missing it will be created; if the path provided points to
// an existing FILE, an error is returned.
func New(config Config, eventBus event.EventDispatcher) (*Service, error) {
	if info, err := os.Stat(config.LibraryPath); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("library path '%s' is not a directory", config.LibraryPath)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(config.LibraryPath, os.ModeDir|os.ModePerm); err != nil {
			return nil, fmt.Errorf("library path '%s' could not be created: %w", config.LibraryPath, err)
		}
	} else {
		return nil, fmt.Errorf("library path '%s' could not be accessed: %w", config.LibraryPath, err)
	}

	return &Service{
		config:   config,
		eventBus: eventBus,
		index:    NewIndex(config.LibraryPath, nil),
	}, nil
}

// Run is the main entry point of this service. It performs the initial
// library scan, then re-scans whenever the OS file system watcher reports
// activity under the library root, as well as on a regular interval
// irrespective of the watcher.
// To kill the service, the calling code should cancel the context provided.
func (service *Service) Run(ctx context.Context) error {
	fsNotifyChannel := make(chan notify.EventInfo, 128)
	if err := notify.Watch(filepath.Join(service.config.LibraryPath, "..."), fsNotifyChannel, notify.All); err != nil {
		log.Emit(logger.WARNING, "File system watching unavailable (%v), relying on interval sync only\n", err)
	} else {
		defer notify.Stop(fsNotifyChannel)
	}

	forceSyncTicker := time.NewTicker(time.Second * time.Duration(service.config.ForceSyncSeconds))
	defer forceSyncTicker.Stop()

	service.Sync()

	for {
		select {
		case <-fsNotifyChannel:
			service.Sync()
		case <-forceSyncTicker.C:
			service.Sync()
		case <-ctx.Done():
			return nil
		}
	}
}

// Sync scans the library and swaps the result in as the current snapshot.
// Concurrent calls are serialised; in-flight readers keep the snapshot
// they already hold. If the scan fails outright the previous snapshot is
// retained so the library does not vanish because of a transient error.
// A CATALOG_UPDATE event is dispatched whenever the new snapshot differs
// from the old one.
func (service *Service) Sync() {
	service.scanMu.Lock()
	defer service.scanMu.Unlock()

	entries, err := Scan(service.config.LibraryPath)
	if err != nil {
		log.Emit(logger.ERROR, "Library scan failed (previous snapshot retained): %v\n", err)
		return
	}

	next := NewIndex(service.config.LibraryPath, entries)

	service.indexMu.Lock()
	previous := service.index
	service.index = next
	service.indexMu.Unlock()

	change := diffIndexes(previous, next)
	if change.Empty() {
		log.Emit(logger.DEBUG, "Library scan finished, no changes (%d entries)\n", next.Len())
		return
	}

	log.Emit(logger.INFO, "Library scan finished: %d entries (%d added, %d removed, %d changed)\n",
		next.Len(), len(change.Added), len(change.Removed), len(change.Changed))
	service.eventBus.Dispatch(event.CATALOG_UPDATE, change)
}

// Index returns the current snapshot. The snapshot is immutable; callers
// may hold on to it for as long as they need a consistent view of the
// library.
func (service *Service) Index() *Index {
	service.indexMu.RLock()
	defer service.indexMu.RUnlock()

	return service.index
}

func (service *Service) Resolve(key string) (MediaEntry, error) {
	return service.Index().Resolve(key)
}

func (service *Service) List(field SortField, order SortOrder) []MediaEntry {
	return service.Index().List(field, order)
}

func (service *Service) Stats() LibraryStats {
	return service.Index().Stats()
}

// diffIndexes reports which keys appeared, vanished, or changed size or
// modtime between two snapshots.
func diffIndexes(previous *Index, next *Index) event.CatalogChange {
	change := event.CatalogChange{}

	for key, entry := range next.entries {
		old, ok := previous.entries[key]
		if !ok {
			change.Added = append(change.Added, key)
		} else if old.Size != entry.Size || !old.ModTime.Equal(entry.ModTime) {
			change.Changed = append(change.Changed, key)
		}
	}

	for key := range previous.entries {
		if _, ok := next.entries[key]; !ok {
			change.Removed = append(change.Removed, key)
		}
	}

	return change
}
