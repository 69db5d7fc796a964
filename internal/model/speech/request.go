package speech

// TTSRequest 语音合成请求
type TTSRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Language  string `json:"language"` // en, es, fr, ...
	Slow      bool   `json:"slow"`
}
