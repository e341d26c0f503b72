package transcript_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/quorumhq/quorum/internal/transcript"
)

func newTestParser() *transcript.Parser {
	return transcript.NewParser(transcript.WithHosts("Lenny", "Lenny Rachitsky"))
}

// body returns filler guest prose of at least n characters so turns clear
// the fragment floor.
func body(n int) string {
	const sentence = "I think the most important part of building product is talking to users every single week. "
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(sentence)
	}
	return strings.TrimSpace(b.String())
}

func TestParse_TimestampedDialect(t *testing.T) {
	t.Parallel()

	text := "Lenny (00:00:01):\nWhat is your single biggest product lesson from your years at CRED?\n\n" +
		"KUNAL SHAH (00:00:08):\n" + body(150) + "\n"

	turns := newTestParser().Parse(text, "episode.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1", len(turns))
	}
	got := turns[0]
	if got.Speaker != "Kunal Shah" {
		t.Errorf("Speaker=%q, want %q (ALL-CAPS normalised)", got.Speaker, "Kunal Shah")
	}
	if got.Timestamp != "00:00:08" {
		t.Errorf("Timestamp=%q, want %q", got.Timestamp, "00:00:08")
	}
	if !strings.HasPrefix(got.PrecedingQuestion, "What is your single biggest") {
		t.Errorf("PrecedingQuestion=%q, want the host question", got.PrecedingQuestion)
	}
	if got.SourceFile != "episode.txt" {
		t.Errorf("SourceFile=%q, want %q", got.SourceFile, "episode.txt")
	}
}

func TestParse_BareNameDialect(t *testing.T) {
	t.Parallel()

	text := "Lenny:\nHow did you decide what to work on next?\n\n" +
		"Adriel Frederick:\n" + body(120) + "\n"

	turns := newTestParser().Parse(text, "ep.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1", len(turns))
	}
	if turns[0].Speaker != "Adriel Frederick" {
		t.Errorf("Speaker=%q, want %q", turns[0].Speaker, "Adriel Frederick")
	}
	if turns[0].Timestamp != "" {
		t.Errorf("Timestamp=%q, want empty in bare-name dialect", turns[0].Timestamp)
	}
}

func TestParse_ShortTurnDropped(t *testing.T) {
	t.Parallel()

	short := "Yeah, exactly. That is so true."
	if len(short) >= 100 {
		t.Fatalf("fixture: short turn is %d chars, want < 100", len(short))
	}
	text := "Lenny (0:01):\nA question from the host goes here?\n\n" +
		"Shreyas Doshi (0:05):\n" + short + "\n\n" +
		"Lenny (0:09):\nAnother question?\n\n" +
		"Shreyas Doshi (0:12):\n" + body(200) + "\n"

	turns := newTestParser().Parse(text, "ep.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1 (fragment dropped)", len(turns))
	}
	if strings.Contains(turns[0].Text, short) {
		t.Errorf("kept turn contains the dropped fragment %q", short)
	}
}

func TestParse_ContinuationInheritsSpeaker(t *testing.T) {
	t.Parallel()

	first := body(120)
	second := body(130)
	text := "Shreyas Doshi (00:03:48):\n" + first + "\n\n" +
		"(00:04:12):\n" + second + "\n"

	turns := newTestParser().Parse(text, "ep.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1 (continuation merged)", len(turns))
	}
	want := first + "\n\n" + second
	if turns[0].Text != want {
		t.Errorf("merged text:\n%q\nwant:\n%q", turns[0].Text, want)
	}
	if turns[0].Timestamp != "00:03:48" {
		t.Errorf("Timestamp=%q, want the first marker's %q", turns[0].Timestamp, "00:03:48")
	}
}

func TestParse_OrphanContinuationDefaultsToHost(t *testing.T) {
	t.Parallel()

	// A continuation before any speaker marker is attributed to the host,
	// so its text becomes the pending question rather than a guest turn.
	// A later speaker marker is needed for the timestamped dialect to engage.
	text := "(00:00:02):\nWelcome back to the podcast, today we talk about pricing.\n\n" +
		"Claire Vo (00:00:30):\n" + body(140) + "\n"

	turns := newTestParser().Parse(text, "ep.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1", len(turns))
	}
	if !strings.Contains(turns[0].PrecedingQuestion, "Welcome back") {
		t.Errorf("PrecedingQuestion=%q, want the orphan host text", turns[0].PrecedingQuestion)
	}
}

func TestParse_FalsePositiveNameDegradesToContinuation(t *testing.T) {
	t.Parallel()

	tail := body(110)
	// "So here is the thing (00:05:00):" matches the marker shape but fails
	// the name heuristic; its span must stay with the current speaker.
	text := "Shreyas Doshi (00:03:48):\n" + body(120) + "\n\n" +
		"So here is the thing (00:05:00):\n" + tail + "\n"

	turns := newTestParser().Parse(text, "ep.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1", len(turns))
	}
	if turns[0].Speaker != "Shreyas Doshi" {
		t.Errorf("Speaker=%q, want %q", turns[0].Speaker, "Shreyas Doshi")
	}
	if !strings.HasSuffix(turns[0].Text, tail) {
		t.Errorf("false-positive span not attached to current speaker")
	}
}

func TestParse_SponsorFiltering(t *testing.T) {
	t.Parallel()

	question := "What frameworks do you actually use day to day?"
	text := "Lenny (0:01):\n" + question + "\n\n" +
		"Sponsor (0:03):\n" + body(150) + "\n\n" +
		"Lenny (0:05):\nThis episode is brought to you by our wonderful sponsor, use promo code LENNY.\n\n" +
		"Shreyas Doshi (0:07):\n" + body(160) + "\n"

	turns := newTestParser().Parse(text, "ep.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1 (ad turns dropped)", len(turns))
	}
	if turns[0].Speaker != "Shreyas Doshi" {
		t.Errorf("Speaker=%q, want %q", turns[0].Speaker, "Shreyas Doshi")
	}
	// The sponsor read must not displace the real question.
	if turns[0].PrecedingQuestion != question {
		t.Errorf("PrecedingQuestion=%q, want %q", turns[0].PrecedingQuestion, question)
	}
}

func TestParse_GuestSponsorContentDropped(t *testing.T) {
	t.Parallel()

	ad := body(80) + " Head over to example.com and use discount code PANEL for twenty percent off."
	text := "Shreyas Doshi (0:01):\n" + ad + "\n\n" +
		"Claire Vo (0:04):\n" + body(140) + "\n"

	turns := newTestParser().Parse(text, "ep.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1", len(turns))
	}
	if turns[0].Speaker != "Claire Vo" {
		t.Errorf("Speaker=%q, want %q", turns[0].Speaker, "Claire Vo")
	}
}

func TestParse_NoMarkers(t *testing.T) {
	t.Parallel()

	turns := newTestParser().Parse("Just a page of prose with no structure at all.\n", "ep.txt")
	if len(turns) != 0 {
		t.Fatalf("Parse: got %d turns, want 0", len(turns))
	}
}

func TestParse_Pure(t *testing.T) {
	t.Parallel()

	text := "Lenny (0:01):\nWhat did you learn?\n\n" +
		"KUNAL SHAH (0:05):\n" + body(150) + "\n\n" +
		"(0:09):\n" + body(110) + "\n"

	p := newTestParser()
	first := p.Parse(text, "ep.txt")
	second := p.Parse(text, "ep.txt")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Parse is not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestParseFile_InvalidUTF8(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 'h', 'i'}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := newTestParser().ParseFile(path); err == nil {
		t.Fatal("ParseFile: err=nil, want decode error")
	}
}

func TestParse_HonorificNameAccepted(t *testing.T) {
	t.Parallel()

	text := "Lenny (0:01):\nDoctor, what does the research say?\n\n" +
		"John Smith Jr. (0:05):\n" + body(140) + "\n"

	turns := newTestParser().Parse(text, "ep.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1", len(turns))
	}
	if turns[0].Speaker != "John Smith Jr." {
		t.Errorf("Speaker=%q, want %q", turns[0].Speaker, "John Smith Jr.")
	}
}

func TestParse_InterjectionRejected(t *testing.T) {
	t.Parallel()

	// "Interesting (0:05):" matches the marker shape but is an interjection;
	// its text stays with the current guest.
	tail := body(120)
	text := "Claire Vo (0:01):\n" + body(130) + "\n\n" +
		"Interesting (0:05):\n" + tail + "\n"

	turns := newTestParser().Parse(text, "ep.txt")
	if len(turns) != 1 {
		t.Fatalf("Parse: got %d turns, want 1", len(turns))
	}
	if turns[0].Speaker != "Claire Vo" {
		t.Errorf("Speaker=%q, want %q", turns[0].Speaker, "Claire Vo")
	}
	if !strings.HasSuffix(turns[0].Text, tail) {
		t.Errorf("interjection span lost instead of attached to current speaker")
	}
}
