package model

// WebSocket message types
const (
	WSMessageTypeSong       = "song"
	WSMessageTypeProduction = "production"
	WSMessageTypePing       = "ping"
	WSMessageTypePong       = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSSongMessage announces a song status change to production subscribers.
type WSSongMessage struct {
	Type         string     `json:"type"`
	ProductionID string     `json:"productionId"`
	SongID       string     `json:"songId"`
	TrackNumber  int        `json:"trackNumber"`
	Status       SongStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
}

// WSProductionMessage announces a production status change.
type WSProductionMessage struct {
	Type         string           `json:"type"`
	ProductionID string           `json:"productionId"`
	Status       ProductionStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
}
