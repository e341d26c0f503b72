package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"
)

// Report measures how much guest content the parser captured from one
// transcript file.
//
// CaptureRatio is ParsedGuestChars / GuestChars, where GuestChars counts
// every raw character attributed to a non-host speaker and ParsedGuestChars
// counts the text of the turns the parser actually kept. The gap between
// the two comes from the fragment floor, sponsor filtering, and rejected
// speaker candidates.
type Report struct {
	File             string
	TotalChars       int
	GuestChars       int
	ParsedTurns      int
	ParsedGuestChars int
	CaptureRatio     float64
	Speakers         []string
}

// VerifyText computes a capture [Report] for transcript text.
//
// Unlike [Parser.Parse], the raw attribution pass here skips invalid
// speaker candidates entirely instead of degrading them to continuations:
// their spans count toward neither side, so rejected names do not inflate
// the denominator.
func (p *Parser) VerifyText(text, sourceFile string) Report {
	type span struct {
		start, end int
		speaker    string
		timestamp  string
	}

	speakerIdx := speakerWithTimestampRe.FindAllStringSubmatchIndex(text, -1)
	contIdx := timestampOnlyRe.FindAllStringSubmatchIndex(text, -1)
	if len(speakerIdx) == 0 {
		speakerIdx = speakerBareRe.FindAllStringSubmatchIndex(text, -1)
		contIdx = nil
	}

	var markers []span
	for _, m := range speakerIdx {
		name := text[m[2]:m[3]]
		if !p.isValidSpeakerName(name) {
			continue
		}
		s := span{start: m[0], end: m[1], speaker: name}
		if len(m) >= 6 && m[4] >= 0 {
			s.timestamp = text[m[4]:m[5]]
		}
		markers = append(markers, s)
	}
	for _, m := range contIdx {
		markers = append(markers, span{start: m[0], end: m[1], timestamp: text[m[2]:m[3]]})
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].start < markers[j].start })

	// Continuations inherit the nearest preceding named speaker.
	for i := range markers {
		if markers[i].speaker != "" {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if markers[j].speaker != "" {
				markers[i].speaker = markers[j].speaker
				break
			}
		}
	}

	guestChars := 0
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		if m.speaker != "" && !p.lexicon.IsHost(m.speaker) {
			guestChars += end - m.end
		}
	}

	turns := p.Parse(text, sourceFile)
	parsedChars := 0
	seen := map[string]struct{}{}
	var speakers []string
	for _, t := range turns {
		parsedChars += len(t.Text)
		if _, ok := seen[t.Speaker]; !ok {
			seen[t.Speaker] = struct{}{}
			speakers = append(speakers, t.Speaker)
		}
	}

	ratio := 1.0
	if guestChars > 0 {
		ratio = float64(parsedChars) / float64(guestChars)
	}

	return Report{
		File:             sourceFile,
		TotalChars:       len(text),
		GuestChars:       guestChars,
		ParsedTurns:      len(turns),
		ParsedGuestChars: parsedChars,
		CaptureRatio:     ratio,
		Speakers:         speakers,
	}
}

// VerifyFile reads path and computes its capture [Report].
func (p *Parser) VerifyFile(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("transcript: read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return Report{}, fmt.Errorf("transcript: %s: not valid UTF-8", path)
	}
	return p.VerifyText(string(data), filepath.Base(path)), nil
}
