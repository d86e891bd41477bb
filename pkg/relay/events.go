package relay

import (
	"encoding/json"
	"fmt"

	"github.com/mattsolo1/grove-elements/pkg/models"
)

// Push channel event names.
const (
	// client -> server
	EventRequestInitialData = "requestInitialData"
	EventCreateItem         = "createItem"
	EventCreateFolder       = "createFolder"
	EventUpdateElement      = "updateElement"

	// server -> client
	EventInitialData   = "initialData"
	EventItemCreated   = "itemCreated"
	EventItemUpdated   = "itemUpdated"
	EventFolderCreated = "folderCreated"
	EventFolderUpdated = "folderUpdated"
)

// refetchEvents are the inbound events that trigger a cache refetch.
var refetchEvents = map[string]bool{
	EventInitialData:   true,
	EventItemCreated:   true,
	EventItemUpdated:   true,
	EventFolderCreated: true,
	EventFolderUpdated: true,
}

// TriggersRefetch reports whether an inbound event invalidates the cache.
func TriggersRefetch(event string) bool {
	return refetchEvents[event]
}

// Message is one frame on the push channel.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes payload as the data of an event frame.
func NewMessage(event string, payload any) (Message, error) {
	m := Message{Event: event}
	if payload == nil {
		return m, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	m.Data = data
	return m, nil
}

// UpdateNotice is the payload of updateElement.
type UpdateNotice struct {
	ID      string        `json:"id"`
	Kind    models.Kind   `json:"kind"`
	Updates models.Update `json:"updates"`
}

// UpdatedEvent names the server event that announces an update of kind.
func UpdatedEvent(kind models.Kind) string {
	if kind == models.KindFolder {
		return EventFolderUpdated
	}
	return EventItemUpdated
}
