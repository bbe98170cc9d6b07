package protocol

// HELLO (peer -> relay): declares who this connection speaks for.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name,omitempty"`
	GM              bool   `json:"gm,omitempty"`
	Scene           string `json:"scene,omitempty"`
	CharacterID     string `json:"character_id,omitempty"`
}

// WELCOME (relay -> peer)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
}

// INTENT (peer -> authority): one immutable transaction request. A peer that
// is itself the authority never puts this on the wire; everyone else
// broadcasts it and only the addressed authority acts on it.
type IntentMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`

	Kind             string `json:"kind"`
	RequestingUserID string `json:"requesting_user_id"`
	SourceActorID    string `json:"source_actor_id"`
	TargetActorID    string `json:"target_actor_id,omitempty"`
	ContainerTokenID string `json:"container_token_id,omitempty"`
	ItemOrCurrencyID string `json:"item_or_currency_id"`
	Quantity         int64  `json:"quantity"`
	AuthorityUserID  string `json:"authority_user_id"`
}

// NOTICE (authority -> everyone): a chat-log entry for a completed
// transaction.
type NoticeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	SpeakerActorID  string `json:"speaker_actor_id,omitempty"`
	SpeakerName     string `json:"speaker_name,omitempty"`
	Text            string `json:"text"`
	ItemID          string `json:"item_id,omitempty"`
	ItemName        string `json:"item_name,omitempty"`
}

// ERROR (authority -> one requester): a rejected intent. Peers other than the
// addressed user ignore it.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	TargetUserID    string `json:"target_user_id"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message"`
}
