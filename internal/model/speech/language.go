package speech

import "errors"

// Language is a synthesis language code.
type Language string

const (
	English    Language = "en"
	Spanish    Language = "es"
	French     Language = "fr"
	German     Language = "de"
	Italian    Language = "it"
	Portuguese Language = "pt"
	Hindi      Language = "hi"
	Japanese   Language = "ja"
)

// LanguageOption pairs a code with its display name.
type LanguageOption struct {
	Code Language `json:"code"`
	Name string   `json:"name"`
}

var languages = []LanguageOption{
	{Code: English, Name: "English"},
	{Code: Spanish, Name: "Spanish"},
	{Code: French, Name: "French"},
	{Code: German, Name: "German"},
	{Code: Italian, Name: "Italian"},
	{Code: Portuguese, Name: "Portuguese"},
	{Code: Hindi, Name: "Hindi"},
	{Code: Japanese, Name: "Japanese"},
}

// Languages returns the supported languages in display order.
func Languages() []LanguageOption {
	return append([]LanguageOption(nil), languages...)
}

// IsSupported reports whether code is one of the enumerated languages.
func IsSupported(code string) bool {
	for _, opt := range languages {
		if string(opt.Code) == code {
			return true
		}
	}
	return false
}

// ErrUnsupportedLanguage is returned for codes outside the enumeration.
var ErrUnsupportedLanguage = errors.New("unsupported language")
