package api

import (
	"github.com/localflix/localflix/internal/api/videos"
	"github.com/localflix/localflix/internal/catalog"
	"github.com/localflix/localflix/internal/event"
	"github.com/localflix/localflix/internal/http/websocket"
)

const (
	TITLE_CATALOG_INDEX   = "CATALOG_INDEX"
	TITLE_CATALOG_UPDATE  = "CATALOG_UPDATE"
	TITLE_STREAM_START    = "STREAM_START"
	TITLE_STREAM_COMPLETE = "STREAM_COMPLETE"
)

type (
	// CatalogUpdate tells connected clients the library changed and hands
	// them the refreshed stats so most dashboards never need a follow-up
	// fetch.
	CatalogUpdate struct {
		Change event.CatalogChange `json:"change"`
		Stats  videos.StatsDto     `json:"stats"`
	}

	StreamActivity struct {
		Key           string `json:"key"`
		ActiveStreams int    `json:"active_streams"`
	}

	catalogIndexArgs struct {
		Sort  string `mapstructure:"sort"`
		Order string `mapstructure:"order"`
	}

	broadcaster struct {
		socketHub *websocket.SocketHub
		store     catalogStore
		counter   videos.StreamCounter
	}
)

func newBroadcaster(socketHub *websocket.SocketHub, store catalogStore, counter videos.StreamCounter) *broadcaster {
	return &broadcaster{socketHub, store, counter}
}

func (hub *broadcaster) BroadcastCatalogUpdate(change event.CatalogChange) error {
	hub.broadcast(TITLE_CATALOG_UPDATE, CatalogUpdate{
		Change: change,
		Stats:  videos.NewStatsDto(hub.store.Stats(), hub.counter.ActiveStreams()),
	})

	return nil
}

func (hub *broadcaster) BroadcastStreamStart(entryKey string) error {
	hub.broadcast(TITLE_STREAM_START, StreamActivity{Key: entryKey, ActiveStreams: hub.counter.ActiveStreams()})
	return nil
}

func (hub *broadcaster) BroadcastStreamComplete(entryKey string) error {
	hub.broadcast(TITLE_STREAM_COMPLETE, StreamActivity{Key: entryKey, ActiveStreams: hub.counter.ActiveStreams()})
	return nil
}

func (hub *broadcaster) broadcast(title string, update any) {
	hub.socketHub.Send(&websocket.SocketMessage{
		Title: title,
		Body:  map[string]interface{}{"arguments": update},
		Type:  websocket.Update,
	})
}

// wsCatalogIndex serves the CATALOG_INDEX socket command: the current
// library listing, sorted per the command arguments the same way the REST
// listing endpoint sorts.
func (hub *broadcaster) wsCatalogIndex(socketHub *websocket.SocketHub, message *websocket.SocketMessage) error {
	var args catalogIndexArgs
	if err := message.DecodeArgumentsInto(&args); err != nil {
		return err
	}

	field, err := catalog.ParseSortField(args.Sort)
	if err != nil {
		return err
	}
	order, err := catalog.ParseSortOrder(args.Order)
	if err != nil {
		return err
	}

	listing := videos.NewListDto(hub.store.List(field, order))
	socketHub.Send(message.FormReply(TITLE_CATALOG_INDEX, map[string]interface{}{
		"videos": listing.Videos,
		"count":  listing.Count,
	}, websocket.Response))

	return nil
}

// welcomePayload is sent to every freshly-connected socket client so a
// dashboard can render without waiting for the first update broadcast.
func (hub *broadcaster) welcomePayload() map[string]interface{} {
	return map[string]interface{}{
		"stats": videos.NewStatsDto(hub.store.Stats(), hub.counter.ActiveStreams()),
	}
}
