package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/localflix/localflix/internal/event"
	"github.com/localflix/localflix/pkg/logger"
)

// Catalog updates arrive in bursts while a scan walks the library, so their
// broadcast is debounced. The max timer bounds how stale a connected client
// can get when the filesystem churns continuously.
const (
	DEBOUNCE_DURATION  time.Duration = time.Second * 2
	MAX_TIMER_DURATION time.Duration = time.Second * 5
)

type (
	broadcaster interface {
		BroadcastCatalogUpdate(event.CatalogChange) error
		BroadcastStreamStart(string) error
		BroadcastStreamComplete(string) error
	}

	activityService struct {
		*sync.Mutex
		broadcaster
		messageChan   event.HandlerChannel
		pendingChange event.CatalogChange
		debounceTimer *time.Timer
		maxTimer      *time.Timer
	}
)

// newActivityService registers its handler channel with the bus right away,
// before any of the services that dispatch to it are spawned; the bus does
// not synchronize registration with dispatch. Events that arrive before Run
// starts consuming sit in the channel buffer.
func newActivityService(broadcaster broadcaster, eventBus event.EventHandler) *activityService {
	messageChan := make(event.HandlerChannel, 100)
	eventBus.RegisterHandlerChannel(messageChan,
		event.CATALOG_UPDATE, event.STREAM_START, event.STREAM_COMPLETE)

	return &activityService{
		Mutex:       &sync.Mutex{},
		broadcaster: broadcaster,
		messageChan: messageChan,
	}
}

func (service *activityService) Run(ctx context.Context) error {
	log.Emit(logger.NEW, "Activity service started\n")
	for {
		select {
		case ev := <-service.messageChan:
			if err := service.handleEvent(ev); err != nil {
				log.Emit(logger.ERROR, "Handling of event %v failed: %v\n", ev, err)
			}
		case <-ctx.Done():
			log.Emit(logger.STOP, "Activity service closed\n")
			return nil
		}
	}
}

// handleEvent routes bus messages to the web socket broadcaster. Stream
// activity is forwarded immediately; catalog changes are folded into the
// pending change set and flushed on a timer.
func (service *activityService) handleEvent(ev event.HandlerEvent) error {
	switch ev.Event {
	case event.CATALOG_UPDATE:
		change, ok := ev.Payload.(event.CatalogChange)
		if !ok {
			return errors.New("illegal payload (expected CatalogChange)")
		}
		service.scheduleCatalogBroadcast(change)
	case event.STREAM_START:
		entryKey, ok := ev.Payload.(string)
		if !ok {
			return errors.New("illegal payload (expected string)")
		}
		return service.BroadcastStreamStart(entryKey)
	case event.STREAM_COMPLETE:
		entryKey, ok := ev.Payload.(string)
		if !ok {
			return errors.New("illegal payload (expected string)")
		}
		return service.BroadcastStreamComplete(entryKey)
	default:
		return errors.New("unknown event type")
	}

	return nil
}

func (service *activityService) scheduleCatalogBroadcast(change event.CatalogChange) {
	service.Lock()
	defer service.Unlock()

	service.pendingChange = mergeChanges(service.pendingChange, change)

	// Cancel and re-set the debounce timer
	if service.debounceTimer != nil {
		service.debounceTimer.Stop()
	}
	service.debounceTimer = time.AfterFunc(DEBOUNCE_DURATION, service.broadcastCatalog)

	// Set a max timer if not already set
	if service.maxTimer == nil {
		service.maxTimer = time.AfterFunc(MAX_TIMER_DURATION, service.broadcastCatalog)
	}
}

func (service *activityService) broadcastCatalog() {
	service.Lock()
	defer service.Unlock()

	if service.debounceTimer != nil {
		service.debounceTimer.Stop()
		service.debounceTimer = nil
	}

	if service.maxTimer != nil {
		service.maxTimer.Stop()
		service.maxTimer = nil
	}

	change := service.pendingChange
	service.pendingChange = event.CatalogChange{}
	if change.Empty() {
		return
	}

	if err := service.BroadcastCatalogUpdate(change); err != nil {
		log.Emit(logger.ERROR, "Failed to broadcast catalog update: %v\n", err)
	}
}

// mergeChanges folds two change sets together, dropping duplicate keys. A key
// that was added and then removed within the window stays in both lists;
// clients re-fetch the listing on any update so the lists are advisory.
func mergeChanges(into event.CatalogChange, change event.CatalogChange) event.CatalogChange {
	return event.CatalogChange{
		Added:   appendUnique(into.Added, change.Added),
		Removed: appendUnique(into.Removed, change.Removed),
		Changed: appendUnique(into.Changed, change.Changed),
	}
}

func appendUnique(existing []string, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, key := range existing {
		seen[key] = struct{}{}
	}

	for _, key := range incoming {
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		existing = append(existing, key)
	}

	return existing
}
