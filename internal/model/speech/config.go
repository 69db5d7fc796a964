package speech

import "time"

// SpeechConfig 语音合成配置
type SpeechConfig struct {
	BaseURL         string `json:"baseUrl"`         // 覆盖默认的 translate.google.{tld} 地址
	TLD             string `json:"tld"`             // Google Translate 顶级域名
	DefaultLanguage string `json:"defaultLanguage"` // 会话默认语言
	DefaultSlow     bool   `json:"defaultSlow"`     // 会话默认慢速
	Timeout         int    `json:"timeout"`         // seconds, 0 keeps the http client default
}

// TimeoutDuration 返回 HTTP 超时时间，0 表示沿用客户端默认值。
func (c *SpeechConfig) TimeoutDuration() time.Duration {
	if c == nil || c.Timeout <= 0 {
		return 0
	}
	return time.Duration(c.Timeout) * time.Second
}
