package playback

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/localflix/localflix/internal/event"
	"github.com/localflix/localflix/pkg/sync"
)

type (
	// Streamer answers a playback request in full: status code, headers
	// and body framing. The controller stays out of the response itself
	// and only tracks which streams are in flight.
	Streamer interface {
		Serve(w http.ResponseWriter, r *http.Request, key string)
	}

	// Session records one in-flight playback stream.
	Session struct {
		EntryKey  string
		StartedAt time.Time
	}

	Controller struct {
		streamer Streamer
		eventBus event.EventDispatcher
		sessions sync.TypedSyncMap[uuid.UUID, Session]
	}
)

func New(streamer Streamer, eventBus event.EventDispatcher) *Controller {
	return &Controller{streamer: streamer, eventBus: eventBus}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/:key", controller.stream)
	eg.HEAD("/:key", controller.head)
}

// stream hands the request to the streamer, bracketing it with session
// tracking and stream activity events. The events fire regardless of how
// the stream ends; a request that 404s simply produces a start/complete
// pair in quick succession.
func (controller *Controller) stream(ec echo.Context) error {
	key := ec.Param("key")

	sessionID := uuid.New()
	controller.sessions.Store(sessionID, Session{EntryKey: key, StartedAt: time.Now()})
	controller.eventBus.Dispatch(event.STREAM_START, key)
	defer func() {
		controller.sessions.Delete(sessionID)
		controller.eventBus.Dispatch(event.STREAM_COMPLETE, key)
	}()

	controller.streamer.Serve(ec.Response(), ec.Request(), key)
	return nil
}

// head serves the header set of the equivalent GET without registering a
// session; probing players should not show up as watchers.
func (controller *Controller) head(ec echo.Context) error {
	controller.streamer.Serve(ec.Response(), ec.Request(), ec.Param("key"))
	return nil
}

// ActiveStreams reports how many playback requests are currently open.
func (controller *Controller) ActiveStreams() int {
	return controller.sessions.Len()
}

// ActiveSessions returns a snapshot of the in-flight streams.
func (controller *Controller) ActiveSessions() []Session {
	sessions := make([]Session, 0)
	controller.sessions.Range(func(_ uuid.UUID, session Session) bool {
		sessions = append(sessions, session)
		return true
	})

	return sessions
}
