package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/localflix/localflix/internal/api"
	"github.com/localflix/localflix/internal/catalog"
	"github.com/localflix/localflix/internal/event"
	"github.com/localflix/localflix/pkg/logger"
)

var log = logger.Get("Core")

type RunnableService interface {
	Run(context.Context) error
}

// Localflix represents the top-level object for the server, and is
// responsible for initialising the catalog, the REST gateway and the event
// plumbing that connects them.
type localflixImpl struct {
	eventBus event.EventCoordinator
	config   LocalflixConfig

	catalogService  *catalog.Service
	restGateway     *api.RestGateway
	activityService *activityService
}

func New(config LocalflixConfig) *localflixImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Localflix services using config: %#v\n", config)
	localflix := &localflixImpl{
		eventBus: event.New(),
		config:   config,
	}

	catalogService, err := catalog.New(config.Library, localflix.eventBus)
	if err != nil {
		panic(fmt.Sprintf("failed to construct catalog service due to error: %s", err.Error()))
	}

	localflix.catalogService = catalogService
	localflix.restGateway = api.NewRestGateway(&config.API, catalogService, localflix.eventBus)
	localflix.activityService = newActivityService(localflix.restGateway, localflix.eventBus)

	return localflix
}

// Run will start all of Localflix by bringing up the catalog service, the
// REST gateway and the activity bridge between them.
//
// This function will not return until Localflix is stopped. To stop
// Localflix, the provided context must be cancelled. Errors from which
// Localflix cannot recover will also cause it to stop; the first such
// error is returned.
func (localflix *localflixImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var crashOnce sync.Once
	var crashErr error
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		crashOnce.Do(func() { crashErr = err })
		cancel()
	}

	wg := &sync.WaitGroup{}
	localflix.spawnAsyncService(ctx, wg, localflix.catalogService, "catalog-service", crashHandler)
	localflix.spawnAsyncService(ctx, wg, localflix.activityService, "activity-service", crashHandler)
	localflix.spawnAsyncService(ctx, wg, localflix.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Localflix services spawned!\n")

	wg.Wait()
	return crashErr
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the Localflix service waitgroup is updated correctly
func (localflix *localflixImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		// The crash handler must run before wg.Done so that a crash is
		// always recorded by the time Run's wg.Wait returns.
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}

			wg.Done()
		}()

		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
