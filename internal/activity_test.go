package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/localflix/localflix/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu             sync.Mutex
	catalogUpdates []event.CatalogChange
	streamStarts   []string
	streamStops    []string
}

func (recorder *recordingBroadcaster) BroadcastCatalogUpdate(change event.CatalogChange) error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.catalogUpdates = append(recorder.catalogUpdates, change)
	return nil
}

func (recorder *recordingBroadcaster) BroadcastStreamStart(entryKey string) error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.streamStarts = append(recorder.streamStarts, entryKey)
	return nil
}

func (recorder *recordingBroadcaster) BroadcastStreamComplete(entryKey string) error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.streamStops = append(recorder.streamStops, entryKey)
	return nil
}

func (recorder *recordingBroadcaster) updates() []event.CatalogChange {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return append([]event.CatalogChange(nil), recorder.catalogUpdates...)
}

func (recorder *recordingBroadcaster) starts() []string {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return append([]string(nil), recorder.streamStarts...)
}

func (recorder *recordingBroadcaster) stops() []string {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return append([]string(nil), recorder.streamStops...)
}

func startActivityService(t *testing.T, service *activityService) {
	ctx, ctxCancel := context.WithCancel(context.Background())
	t.Cleanup(ctxCancel)

	go func() { _ = service.Run(ctx) }()
}

// Events dispatched between construction and Run must not be lost; the
// service registers its handler channel at construction time.
func Test_ActivityService_DeliversEventsDispatchedBeforeRun(t *testing.T) {
	eventBus := event.New()
	recorder := &recordingBroadcaster{}
	service := newActivityService(recorder, eventBus)

	eventBus.Dispatch(event.STREAM_START, "abc123")
	eventBus.Dispatch(event.STREAM_COMPLETE, "abc123")

	startActivityService(t, service)

	require.Eventually(t, func() bool {
		return len(recorder.starts()) == 1 && len(recorder.stops()) == 1
	}, time.Second*2, time.Millisecond*10, "buffered events never reached the broadcaster")

	assert.Equal(t, []string{"abc123"}, recorder.starts())
	assert.Equal(t, []string{"abc123"}, recorder.stops())
}

func Test_ActivityService_DebouncesCatalogBursts(t *testing.T) {
	eventBus := event.New()
	recorder := &recordingBroadcaster{}
	service := newActivityService(recorder, eventBus)
	startActivityService(t, service)

	eventBus.Dispatch(event.CATALOG_UPDATE, event.CatalogChange{Added: []string{"one"}})
	eventBus.Dispatch(event.CATALOG_UPDATE, event.CatalogChange{Added: []string{"two"}, Changed: []string{"one"}})

	require.Eventually(t, func() bool {
		return len(recorder.updates()) > 0
	}, DEBOUNCE_DURATION+time.Second*2, time.Millisecond*50, "debounced broadcast never fired")

	updates := recorder.updates()
	require.Len(t, updates, 1, "burst of changes should collapse in to a single broadcast")
	assert.Equal(t, []string{"one", "two"}, updates[0].Added)
	assert.Equal(t, []string{"one"}, updates[0].Changed)
	assert.Empty(t, updates[0].Removed)
}

// Continuous churn keeps resetting the debounce window, so the max timer is
// what bounds how stale connected clients can get.
func Test_ActivityService_FlushesDuringContinuousChurn(t *testing.T) {
	eventBus := event.New()
	recorder := &recordingBroadcaster{}
	service := newActivityService(recorder, eventBus)
	startActivityService(t, service)

	deadline := time.Now().Add(MAX_TIMER_DURATION + time.Second*2)
	for time.Now().Before(deadline) && len(recorder.updates()) == 0 {
		eventBus.Dispatch(event.CATALOG_UPDATE, event.CatalogChange{Changed: []string{"episode"}})
		time.Sleep(time.Millisecond * 250)
	}

	updates := recorder.updates()
	require.NotEmpty(t, updates, "max timer never flushed while changes kept arriving")
	assert.Equal(t, []string{"episode"}, updates[0].Changed)
}

func Test_MergeChanges_DropsDuplicateKeys(t *testing.T) {
	merged := mergeChanges(
		event.CatalogChange{Added: []string{"a", "b"}, Removed: []string{"x"}},
		event.CatalogChange{Added: []string{"b", "c"}, Removed: []string{"x"}, Changed: []string{"a"}},
	)

	assert.Equal(t, []string{"a", "b", "c"}, merged.Added)
	assert.Equal(t, []string{"x"}, merged.Removed)
	assert.Equal(t, []string{"a"}, merged.Changed)
}
