package speech

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "   \n ", want: nil},
		{name: "short sentence", text: "Hello world.", want: []string{"Hello world."}},
		{name: "merges short sentences", text: "Hi. How are you?\nFine!", want: []string{"Hi. How are you? Fine!"}},
		{name: "decimal is not a break", text: "Pi is 3.14 roughly.", want: []string{"Pi is 3.14 roughly."}},
		{name: "drops bare punctuation", text: "... !", want: nil},
		{name: "full width punctuation", text: "こんにちは。元気ですか？", want: []string{"こんにちは。 元気ですか？"}},
	}

	for _, tt := range tests {
		got := splitText(tt.text, maxChunkRunes)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: splitText(%q) = %q, want %q", tt.name, tt.text, got, tt.want)
		}
	}
}

func TestSplitTextRespectsLimit(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 20) + strings.Repeat("x", 250)

	chunks := splitText(long, maxChunkRunes)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > maxChunkRunes || n == 0 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	if strings.ReplaceAll(strings.Join(chunks, ""), " ", "") != strings.ReplaceAll(long, " ", "") {
		t.Fatal("chunks must preserve the text")
	}
}

func TestSplitTextSentenceBoundaries(t *testing.T) {
	first := strings.Repeat("a", 60) + "."
	second := strings.Repeat("b", 60) + "."

	got := splitText(first+" "+second, maxChunkRunes)
	want := []string{first, second}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitText = %q, want %q", got, want)
	}
}
