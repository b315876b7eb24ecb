package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	UserID          uint64 `json:"user_id"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	SessionID       string            `json:"session_id"`
	MaxDropCount    int               `json:"max_drop_count"`
	AllowClean      bool              `json:"allow_clean"`
	DefaultLanguage string            `json:"default_language"`
	Languages       []string          `json:"languages"`
	Catalogs        map[string]string `json:"catalogs,omitempty"`
}

// COMMAND (client -> server). Args is the command's argument text as a user
// would type it after the command name.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Cmd             string `json:"cmd"`
	Args            string `json:"args,omitempty"`
	Lang            string `json:"lang,omitempty"`
	Page            int    `json:"page,omitempty"`
}

// REPLY (server -> client): the immediate answer to a COMMAND.
type ReplyMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReplyTo         string `json:"reply_to,omitempty"`
	Code            string `json:"code,omitempty"`
	Text            string `json:"text"`
	RequestID       string `json:"request_id,omitempty"`
}

// DONE (server -> client): a queued drop finished.
type DoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id"`
	Success         bool   `json:"success"`
	Code            string `json:"code,omitempty"`
	Text            string `json:"text"`
}
