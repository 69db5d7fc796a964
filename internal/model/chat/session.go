package chat

import "time"

// Settings holds the operator supplied credential and voice configuration.
type Settings struct {
	Credential string `json:"-"`
	Language   string `json:"language"`
	Slow       bool   `json:"slow"`
}

// CredentialSet reports whether a credential has been supplied.
func (s Settings) CredentialSet() bool {
	return s.Credential != ""
}

// Session captures a transient anonymous conversation.
type Session struct {
	ID        string    `json:"id"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"createdAt"`
}
