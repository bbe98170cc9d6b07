package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeIntent  = "INTENT"
	TypeNotice  = "NOTICE"
	TypeError   = "ERROR"
)

// Transaction kinds.
const (
	KindBuy  = "buy"
	KindLoot = "loot"
	KindDrop = "drop"
	KindGive = "give"
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

func IsKnownKind(kind string) bool {
	switch kind {
	case KindBuy, KindLoot, KindDrop, KindGive:
		return true
	}
	return false
}
