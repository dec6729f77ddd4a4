package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/localflix/localflix/internal/api/playback"
	"github.com/localflix/localflix/internal/api/videos"
	"github.com/localflix/localflix/internal/event"
	"github.com/localflix/localflix/internal/http/websocket"
	"github.com/localflix/localflix/internal/stream"
	"github.com/localflix/localflix/pkg/logger"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		Host string `yaml:"host" env:"HOST" env-default:"0.0.0.0" validate:"required"`
		Port int    `yaml:"port" env:"PORT" env-default:"5000" validate:"gt=0,lte=65535"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// catalogStore is the union of the catalog capabilities the gateway's
	// controllers and broadcaster require.
	catalogStore interface {
		videos.Store
		stream.Resolver
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router. Its sole
	// responsibility is to create the routes the server exposes and to manage
	// ongoing web socket connections and events.
	RestGateway struct {
		*broadcaster
		config             *RestConfig
		ec                 *echo.Echo
		socket             *websocket.SocketHub
		videosController   controller
		playbackController controller
	}
)

func (config *RestConfig) HostAddr() string {
	return fmt.Sprintf("%s:%d", config.Host, config.Port)
}

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers. The catalog store backs the
// listing endpoints and playback resolution; stream activity flows out
// through the event bus and back in via the broadcaster.
func NewRestGateway(config *RestConfig, store catalogStore, eventBus event.EventDispatcher) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	socket := websocket.New()
	playbackController := playback.New(stream.NewResponder(store), eventBus)
	gateway := &RestGateway{
		broadcaster:        newBroadcaster(socket, store, playbackController),
		config:             config,
		ec:                 ec,
		socket:             socket,
		videosController:   videos.New(store, playbackController),
		playbackController: playbackController,
	}

	socket.WithConnectionCallback(gateway.welcomePayload)
	socket.BindCommand(TITLE_CATALOG_INDEX, gateway.wsCatalogIndex)

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())

	ec.GET("/health", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "localflix",
		})
	})

	api := ec.Group("/api/v1", middleware.CORS())
	gateway.videosController.SetRoutes(api)
	api.GET("/activity/ws", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	media := ec.Group("/media")
	gateway.playbackController.SetRoutes(media)

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr()); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	// Start websocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
