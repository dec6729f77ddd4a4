package videos

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/localflix/localflix/internal/catalog"
)

type (
	// Store is the slice of the catalog service these endpoints consume.
	Store interface {
		List(catalog.SortField, catalog.SortOrder) []catalog.MediaEntry
		Resolve(key string) (catalog.MediaEntry, error)
		Stats() catalog.LibraryStats
		Sync()
	}

	// StreamCounter reports how many playback streams are open right now;
	// it feeds the stats endpoint.
	StreamCounter interface {
		ActiveStreams() int
	}

	Controller struct {
		store   Store
		counter StreamCounter
	}
)

func New(store Store, counter StreamCounter) *Controller {
	return &Controller{store: store, counter: counter}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/videos", controller.list)
	eg.GET("/videos/:id", controller.get)
	eg.GET("/stats", controller.stats)
	eg.POST("/rescan", controller.rescan)
}

// list returns every entry of the current library snapshot. Ordering is
// controlled by the 'sort' (name|date|size) and 'order' (asc|desc) query
// parameters; unknown values are rejected rather than silently defaulted.
func (controller *Controller) list(ec echo.Context) error {
	field, order, err := parseSortParams(ec)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, NewListDto(controller.store.List(field, order)))
}

// get returns the details of a single entry. The entry is re-checked
// against the file system, so an entry whose file vanished since the last
// scan reports as missing here too.
func (controller *Controller) get(ec echo.Context) error {
	entry, err := controller.store.Resolve(ec.Param("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "video not found")
		}

		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to fetch video: %v", err))
	}

	return ec.JSON(http.StatusOK, NewDto(entry))
}

func (controller *Controller) stats(ec echo.Context) error {
	return ec.JSON(http.StatusOK, NewStatsDto(controller.store.Stats(), controller.counter.ActiveStreams()))
}

// rescan kicks off a library sync without holding the request open while
// it runs; clients observe completion through the activity socket.
func (controller *Controller) rescan(ec echo.Context) error {
	go controller.store.Sync()
	return ec.NoContent(http.StatusAccepted)
}

func parseSortParams(ec echo.Context) (catalog.SortField, catalog.SortOrder, error) {
	field, err := catalog.ParseSortField(ec.QueryParam("sort"))
	if err != nil {
		return field, catalog.OrderAsc, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	order, err := catalog.ParseSortOrder(ec.QueryParam("order"))
	if err != nil {
		return field, order, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return field, order, nil
}
