package chat

import "strings"

// SettingsUpdate carries a partial settings change; nil fields are left alone.
type SettingsUpdate struct {
	Credential *string `json:"credential,omitempty"`
	Language   *string `json:"language,omitempty"`
	Slow       *bool   `json:"slow,omitempty"`
}

// Apply returns s with the non-nil fields of u applied.
func (u SettingsUpdate) Apply(s Settings) Settings {
	if u.Credential != nil {
		s.Credential = strings.TrimSpace(*u.Credential)
	}
	if u.Language != nil {
		s.Language = strings.TrimSpace(*u.Language)
	}
	if u.Slow != nil {
		s.Slow = *u.Slow
	}
	return s
}
