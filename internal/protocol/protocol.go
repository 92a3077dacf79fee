package protocol

import "encoding/json"

const Version = "1.0"

// Server -> client message types.
const (
	TypeState  = "STATE"
	TypeResult = "RESULT"
)

// Client -> server command types.
const (
	TypePlace        = "PLACE"
	TypeRemove       = "REMOVE"
	TypeRepair       = "REPAIR"
	TypeUpgrade      = "UPGRADE"
	TypePreview      = "PREVIEW"
	TypeSetTimeScale = "SET_TIME_SCALE"
	TypePause        = "PAUSE"
	TypeResume       = "RESUME"
	TypeSave         = "SAVE"
	TypeLoad         = "LOAD"
	TypeListSaves    = "LIST_SAVES"
	TypeDeleteSave   = "DELETE_SAVE"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
