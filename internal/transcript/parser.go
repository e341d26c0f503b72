// Package transcript turns raw interview transcripts into ordered speaker
// turns and retrieval-sized chunks.
//
// Transcripts arrive as plain text in one of two dialects:
//
//	Shreyas Doshi (00:03:48):    timestamped speaker marker
//	Adriel Frederick:            bare-name speaker marker
//	(00:04:12):                  timestamp-only continuation (same speaker)
//
// The [Parser] scans for marker lines, filters out lines that merely look
// like markers (sentences ending in a colon) with a heuristic over closed
// word lists (see [Lexicon]), folds the markers into turns carrying the
// current speaker across continuations, merges adjacent turns from the same
// speaker, and finally keeps only substantial guest turns with the most
// recent host question attached.
//
// Parsing is a pure function of the input text: the same bytes always
// produce the same turns.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Turn is a single guest speaker turn extracted from a transcript.
type Turn struct {
	// Speaker is the normalised display name ("KUNAL SHAH" becomes
	// "Kunal Shah").
	Speaker string

	// Timestamp is the marker timestamp ("00:03:48"), or "" in the
	// bare-name dialect.
	Timestamp string

	// Text is the full turn body. Adjacent turns by the same speaker are
	// merged with a blank line between them.
	Text string

	// PrecedingQuestion is the most recent non-sponsor host turn before
	// this one, or "" when the guest speaks first.
	PrecedingQuestion string

	// SourceFile is the base name of the transcript file.
	SourceFile string
}

// Speaker marker with timestamp: `Shreyas Doshi (00:03:48):` alone on a line.
// The name must start the line with a capital letter and stay within 2-50
// characters of letters, spaces, dots, ampersands, hyphens and apostrophes.
var speakerWithTimestampRe = regexp.MustCompile(
	`(?m)^([A-Z][A-Za-z .&\-']{1,49})\s*\((\d{1,2}:\d{2}(?::\d{2})?)\):[ \t]*\r?$`)

// Bare-name speaker marker: `Adriel Frederick:` alone on a line.
var speakerBareRe = regexp.MustCompile(
	`(?m)^([A-Z][A-Za-z .&\-']{1,49}):[ \t]*\r?$`)

// Timestamp-only continuation: `(00:00:48):` alone on a line.
var timestampOnlyRe = regexp.MustCompile(
	`(?m)^\((\d{1,2}:\d{2}(?::\d{2})?)\):[ \t]*\r?$`)

const (
	markerSpeaker      = "speaker"
	markerContinuation = "continuation"
)

// marker is one matched marker line, positioned by byte offset.
type marker struct {
	start, end int
	speaker    string // "" for continuations until folded
	timestamp  string
	kind       string
}

// defaultMinTurnChars is the floor below which a merged guest turn is
// discarded as a fragment ("Yeah, exactly.").
const defaultMinTurnChars = 100

// Parser extracts guest turns from transcript text. The zero value is not
// usable; construct with [NewParser]. A Parser is read-only after
// construction and safe for concurrent use.
type Parser struct {
	lexicon      *Lexicon
	minTurnChars int
}

// Option configures a [Parser].
type Option func(*Parser)

// WithLexicon replaces the default word lists and host identities.
func WithLexicon(lex *Lexicon) Option {
	return func(p *Parser) { p.lexicon = lex }
}

// WithHosts sets the host identities, keeping the default word lists.
// The first host is the default speaker for continuation markers that
// appear before any speaker marker.
func WithHosts(hosts ...string) Option {
	return func(p *Parser) { p.lexicon = DefaultLexicon(hosts...) }
}

// WithMinTurnChars sets the minimum merged turn length for a guest turn to
// be kept. Values below 1 disable the floor.
func WithMinTurnChars(n int) Option {
	return func(p *Parser) { p.minTurnChars = n }
}

// NewParser creates a Parser with the default lexicon and a 100-character
// guest turn floor, then applies opts in order.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		lexicon:      DefaultLexicon(),
		minTurnChars: defaultMinTurnChars,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Lexicon returns the parser's word lists and host identities.
func (p *Parser) Lexicon() *Lexicon { return p.lexicon }

// ParseFile reads path and parses it. The file must be valid UTF-8.
// The returned turns carry the file's base name as SourceFile.
func (p *Parser) ParseFile(path string) ([]Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transcript: read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("transcript: %s: not valid UTF-8", path)
	}
	return p.Parse(string(data), filepath.Base(path)), nil
}

// Parse extracts guest turns from text. sourceFile is recorded on each turn
// but is otherwise not interpreted.
//
// Text with no recognisable speaker markers yields no turns.
func (p *Parser) Parse(text, sourceFile string) []Turn {
	markers := p.scanMarkers(text)
	if len(markers) == 0 {
		return nil
	}
	raw := p.foldTurns(text, markers)
	merged := mergeAdjacent(raw)
	return p.collectGuestTurns(merged, sourceFile)
}

// scanMarkers finds every marker line in text and orders them by position.
// The timestamped dialect is tried first; only when it matches nothing does
// the bare-name dialect apply (which has no continuation form). Speaker
// candidates that fail the name heuristic degrade to continuation markers
// so their text still attaches to the current speaker.
func (p *Parser) scanMarkers(text string) []marker {
	speakerIdx := speakerWithTimestampRe.FindAllStringSubmatchIndex(text, -1)
	contIdx := timestampOnlyRe.FindAllStringSubmatchIndex(text, -1)
	timestamped := true
	if len(speakerIdx) == 0 {
		speakerIdx = speakerBareRe.FindAllStringSubmatchIndex(text, -1)
		contIdx = nil
		timestamped = false
	}
	if len(speakerIdx) == 0 {
		return nil
	}

	markers := make([]marker, 0, len(speakerIdx)+len(contIdx))
	for _, m := range speakerIdx {
		name := text[m[2]:m[3]]
		ts := ""
		if timestamped {
			ts = text[m[4]:m[5]]
		}
		if p.isValidSpeakerName(name) {
			markers = append(markers, marker{
				start:     m[0],
				end:       m[1],
				speaker:   normalizeSpeakerName(name),
				timestamp: ts,
				kind:      markerSpeaker,
			})
		} else {
			// False positive (a sentence ending in a colon): keep the
			// position so the following text stays with the current
			// speaker, but attribute no speaker change.
			markers = append(markers, marker{
				start:     m[0],
				end:       m[1],
				timestamp: ts,
				kind:      markerContinuation,
			})
		}
	}
	for _, m := range contIdx {
		markers = append(markers, marker{
			start:     m[0],
			end:       m[1],
			timestamp: text[m[2]:m[3]],
			kind:      markerContinuation,
		})
	}

	sort.Slice(markers, func(i, j int) bool { return markers[i].start < markers[j].start })
	return markers
}

// rawTurn is a turn before merging and filtering.
type rawTurn struct {
	speaker   string
	timestamp string
	text      string
	isHost    bool
}

// foldTurns walks the ordered markers, carrying the current speaker across
// continuations. A continuation before any speaker marker is attributed to
// the default host.
func (p *Parser) foldTurns(text string, markers []marker) []rawTurn {
	turns := make([]rawTurn, 0, len(markers))
	currentSpeaker := ""

	for i, m := range markers {
		speaker := m.speaker
		if m.kind == markerSpeaker {
			currentSpeaker = speaker
		} else {
			speaker = currentSpeaker
			if speaker == "" {
				speaker = p.lexicon.DefaultHost()
			}
		}

		start := m.end
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}

		turns = append(turns, rawTurn{
			speaker:   speaker,
			timestamp: m.timestamp,
			text:      strings.TrimSpace(text[start:end]),
			isHost:    p.lexicon.IsHost(speaker),
		})
	}
	return turns
}

// mergeAdjacent joins consecutive turns by the same speaker with a blank
// line. The first turn's timestamp wins.
func mergeAdjacent(turns []rawTurn) []rawTurn {
	merged := make([]rawTurn, 0, len(turns))
	for _, t := range turns {
		if n := len(merged); n > 0 && merged[n-1].speaker == t.speaker {
			merged[n-1].text += "\n\n" + t.text
			continue
		}
		merged = append(merged, t)
	}
	return merged
}

// collectGuestTurns classifies the merged turns: host turns update the
// pending question (unless they are sponsor reads), guest turns are kept
// when they are neither sponsor content nor below the length floor.
func (p *Parser) collectGuestTurns(turns []rawTurn, sourceFile string) []Turn {
	var guests []Turn
	lastHostQuestion := ""

	for _, t := range turns {
		if t.isHost {
			if !p.lexicon.IsSponsorContent(t.text) {
				lastHostQuestion = t.text
			}
			continue
		}
		if p.lexicon.IsSponsorSpeaker(t.speaker) {
			continue
		}
		if p.lexicon.IsSponsorContent(t.text) {
			continue
		}
		if p.minTurnChars > 0 && len(t.text) < p.minTurnChars {
			continue
		}
		guests = append(guests, Turn{
			Speaker:           t.speaker,
			Timestamp:         t.timestamp,
			Text:              t.text,
			PrecedingQuestion: lastHostQuestion,
			SourceFile:        sourceFile,
		})
	}
	return guests
}

// isValidSpeakerName reports whether a marker's captured name is plausibly
// a person rather than a sentence fragment that happened to end in a colon.
// The checks run cheapest-first; any failure rejects the candidate.
func (p *Parser) isValidSpeakerName(name string) bool {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return false
	}
	lower := strings.ToLower(clean)
	words := strings.Fields(lower)

	if len(words) > 5 {
		return false
	}
	if len(clean) < 3 {
		return false
	}

	if len(words) == 1 {
		word := strings.TrimRight(words[0], ".")
		for _, part := range strings.Split(word, "-") {
			if _, bad := p.lexicon.interjections[part]; bad {
				return false
			}
		}
		if strings.HasSuffix(clean, ".") && !p.endsWithHonorific(clean) {
			return false
		}
	}

	for _, w := range words {
		w = strings.TrimRight(w, ".,!?")
		if _, bad := p.lexicon.sentenceWords[w]; bad {
			return false
		}
	}

	if len(words) > 1 && strings.HasSuffix(clean, ".") && !p.endsWithHonorific(clean) {
		return false
	}
	return true
}

func (p *Parser) endsWithHonorific(name string) bool {
	for _, h := range p.lexicon.honorifics {
		if strings.HasSuffix(name, h) {
			return true
		}
	}
	return false
}

// normalizeSpeakerName trims the name and rewrites ALL-CAPS names to title
// case ("KUNAL SHAH" becomes "Kunal Shah"). Mixed-case names pass through
// untouched.
func normalizeSpeakerName(name string) string {
	name = strings.TrimSpace(name)
	if !isAllUpper(name) {
		return name
	}
	return titleCase(name)
}

// isAllUpper reports whether name contains at least one cased letter and no
// lowercase letters.
func isAllUpper(name string) bool {
	hasLetter := false
	for _, r := range name {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// titleCase uppercases the first letter of every word and lowercases the
// rest. Any non-letter acts as a word boundary, so "O'NEIL" becomes
// "O'Neil".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
