package websocket

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

type socketMessageType int

const (
	Update socketMessageType = iota
	Command
	Response
	ErrorResponse
	Welcome
)

// SocketMessage is one frame of the activity protocol. Commands flow from
// clients to the server, every other type flows outwards. The Id field can
// be used when replying to this message so the receiving client is aware
// of which message this reply is for; Origin serves the same purpose on
// the server side, carrying the UUID of the client the message came from.
type SocketMessage struct {
	Title  string                 `json:"title"`
	Body   map[string]interface{} `json:"arguments"`
	Id     int                    `json:"id"`
	Type   socketMessageType      `json:"type"`
	Origin *uuid.UUID             `json:"-"`
	Target *uuid.UUID             `json:"-"`
}

// DecodeArgumentsInto maps the messages loosely-typed argument body on to
// the typed struct provided, tolerating the numeric widening JSON decoding
// introduces. Command handlers use this to avoid fishing values out of the
// body map by hand.
func (message *SocketMessage) DecodeArgumentsInto(target interface{}) error {
	if err := mapstructure.WeakDecode(message.Body, target); err != nil {
		return fmt.Errorf("arguments for command '%s' are invalid: %w", message.Title, err)
	}

	return nil
}

// FormReply is a method on a SocketMessage that will
// return a NEW message that has the same origin/id as
// the original message, but with a new (caller provided) title,
// type, and arguments.
func (message *SocketMessage) FormReply(replyTitle string, replyBody map[string]interface{}, replyType socketMessageType) *SocketMessage {
	if replyBody != nil {
		replyBody["command"] = message.Body
	}

	return &SocketMessage{
		Title:  replyTitle,
		Body:   replyBody,
		Type:   replyType,
		Id:     message.Id,
		Target: message.Origin,
	}
}
