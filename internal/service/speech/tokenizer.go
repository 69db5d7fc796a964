package speech

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxChunkRunes is the longest text the translate endpoint accepts per request.
const maxChunkRunes = 100

// splitText breaks text into request-sized chunks. It cuts after sentence
// punctuation first, merges short neighbours back together, and only falls
// back to whitespace or a hard cut for runs longer than limit.
func splitText(text string, limit int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var chunks []string
	var current string
	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, segment := range splitOnPunctuation(text) {
		for _, part := range minimize(segment, limit) {
			if isOnlyPunctuation(part) {
				continue
			}
			switch {
			case current == "":
				current = part
			case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(part) <= limit:
				current += " " + part
			default:
				flush()
				current = part
			}
		}
	}
	flush()

	return chunks
}

func splitOnPunctuation(text string) []string {
	runes := []rune(text)
	var segments []string
	start := 0
	for i, r := range runes {
		atEnd := i == len(runes)-1
		cut := false
		switch {
		case isFullWidthBreak(r):
			cut = true
		case isSentenceBreak(r):
			cut = atEnd || unicode.IsSpace(runes[i+1])
		}
		if !cut {
			continue
		}
		if seg := strings.TrimSpace(string(runes[start : i+1])); seg != "" {
			segments = append(segments, seg)
		}
		start = i + 1
	}
	if start < len(runes) {
		if seg := strings.TrimSpace(string(runes[start:])); seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

func minimize(text string, limit int) []string {
	var out []string
	for {
		text = strings.TrimSpace(text)
		runes := []rune(text)
		if len(runes) <= limit {
			if text != "" {
				out = append(out, text)
			}
			return out
		}

		cut := limit
		for i := limit; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[:cut])))
		text = string(runes[cut:])
	}
}

func isSentenceBreak(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':', ',', '…':
		return true
	}
	return false
}

func isFullWidthBreak(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '：', '，', '、', '।':
		return true
	}
	return false
}

func isOnlyPunctuation(text string) bool {
	for _, r := range text {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
