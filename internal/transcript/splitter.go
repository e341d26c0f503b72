package transcript

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one retrieval-sized slice of a [Turn], carrying the turn's
// metadata so it can be indexed stand-alone.
type Chunk struct {
	Speaker           string
	Timestamp         string
	Text              string
	PrecedingQuestion string
	SourceFile        string

	// Index is the chunk's position within its turn, starting at 0.
	Index int
}

// minTailChars is the floor below which a trailing remainder chunk is
// dropped rather than emitted. Matches the guest-turn fragment floor.
const minTailChars = 100

// Splitter splits text into chunks of at most MaxChars bytes at paragraph
// boundaries, seeding each new chunk with the tail of the previous one so
// context survives the cut.
//
// A single paragraph longer than MaxChars is kept whole: paragraph
// boundaries are never broken mid-paragraph. A trailing remainder shorter
// than 100 bytes is dropped.
type Splitter struct {
	// MaxChars is the soft upper bound on chunk length, in bytes. For
	// non-ASCII text the effective character budget is smaller, since
	// multi-byte runes count per byte.
	MaxChars int

	// Overlap is how many bytes from the end of a finished chunk seed the
	// next one, extended left to a rune boundary.
	Overlap int
}

// SplitText splits text into chunks. Text at or under MaxChars is returned
// as a single chunk unchanged, regardless of the trailing floor.
func (s Splitter) SplitText(text string) []string {
	if len(text) <= s.MaxChars {
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	current := ""

	for _, para := range paragraphs {
		// +2 accounts for the blank-line separator that joining would add.
		if len(current)+len(para)+2 <= s.MaxChars {
			if current == "" {
				current = para
			} else {
				current += "\n\n" + para
			}
			continue
		}
		if current == "" {
			// Oversize single paragraph: keep it whole, flush on the next
			// iteration.
			current = para
			continue
		}
		chunks = append(chunks, current)
		current = tail(current, s.Overlap) + "\n\n" + para
	}

	if current != "" && len(current) >= minTailChars {
		chunks = append(chunks, current)
	}
	return chunks
}

// SplitTurn splits a turn's text and attaches the turn's metadata to every
// chunk.
func (s Splitter) SplitTurn(turn Turn) []Chunk {
	parts := s.SplitText(turn.Text)
	chunks := make([]Chunk, len(parts))
	for i, text := range parts {
		chunks[i] = Chunk{
			Speaker:           turn.Speaker,
			Timestamp:         turn.Timestamp,
			Text:              text,
			PrecedingQuestion: turn.PrecedingQuestion,
			SourceFile:        turn.SourceFile,
			Index:             i,
		}
	}
	return chunks
}

// tail returns the last n bytes of s, extended left to a rune boundary so
// the overlap never starts mid-character.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[i:]
}
