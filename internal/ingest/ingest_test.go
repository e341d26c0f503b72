package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quorumhq/quorum/internal/ingest"
	"github.com/quorumhq/quorum/internal/transcript"
	"github.com/quorumhq/quorum/pkg/corpus"
	"github.com/quorumhq/quorum/pkg/corpus/memory"
	"github.com/quorumhq/quorum/pkg/provider/embeddings/mock"
)

func newTestParser() *transcript.Parser {
	return transcript.NewParser(transcript.WithHosts("Lenny", "Lenny Rachitsky"))
}

// answer pads a sentence past the minimum-turn floor so the parser keeps it.
func answer(lead string) string {
	return lead + " " + strings.Repeat("That is the core of how I think about this problem in practice. ", 3)
}

func writeTranscript(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRun_BuildsParentsAndChildren(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTranscript(t, dir, "episode1.txt",
		"Lenny Rachitsky (00:00:05):\nWhat is your framework for prioritisation?\n\n"+
			"Kunal Shah (00:00:30):\n"+answer("Delta four is my framework.")+"\n")

	store := memory.NewStore()
	embedder := mock.New(4)
	ing := ingest.New(newTestParser(), embedder, store)

	stats, err := ing.Run(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Files != 1 || stats.Turns != 1 || stats.Parents != 1 || stats.Children != 1 {
		t.Fatalf("stats=%+v, want 1 file, 1 turn, 1 parent, 1 child", stats)
	}

	wantID := "doc_000000_Kunal_Shah_00-00-30"
	parents, err := store.GetParents(context.Background(), []string{wantID})
	if err != nil {
		t.Fatalf("GetParents: %v", err)
	}
	parent, ok := parents[wantID]
	if !ok {
		t.Fatalf("parent %q not stored", wantID)
	}
	if !strings.HasPrefix(parent.Text, "Question: What is your framework for prioritisation?\n\nAnswer: Delta four") {
		t.Errorf("parent text not framed with question:\n%q", parent.Text)
	}
	if parent.Speaker != "Kunal Shah" || parent.SourceFile != "episode1.txt" || parent.Timestamp != "00:00:30" {
		t.Errorf("parent metadata=%+v", parent)
	}
	if parent.PrecedingQuestion != "What is your framework for prioritisation?" {
		t.Errorf("PrecedingQuestion=%q", parent.PrecedingQuestion)
	}

	// The single child carries the framed text and points back at its parent.
	matches, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Search: got %d children, want 1", len(matches))
	}
	if matches[0].ParentID != wantID {
		t.Errorf("child ParentID=%q, want %q", matches[0].ParentID, wantID)
	}
	if matches[0].ChildID != wantID+"_c000" {
		t.Errorf("child ID=%q, want %q", matches[0].ChildID, wantID+"_c000")
	}
}

func TestRun_ParentCounterSpansFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// Sorted file order decides the counter, whatever order parsing finishes.
	writeTranscript(t, dir, "b_second.txt",
		"Claire Vo (00:01:00):\n"+answer("Ship faster by deciding faster.")+"\n")
	writeTranscript(t, dir, "a_first.txt",
		"Shreyas Doshi (00:02:00):\n"+answer("Pre-mortems beat post-mortems."))

	store := memory.NewStore()
	ing := ingest.New(newTestParser(), mock.New(4), store)
	if _, err := ing.Run(context.Background(), dir, false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	parents, err := store.GetParents(context.Background(), []string{
		"doc_000000_Shreyas_Doshi_00-02-00",
		"doc_000001_Claire_Vo_00-01-00",
	})
	if err != nil {
		t.Fatalf("GetParents: %v", err)
	}
	if len(parents) != 2 {
		t.Fatalf("got %d parents, want counter 0 in a_first.txt and 1 in b_second.txt", len(parents))
	}

	speakers, err := store.ListSpeakers(context.Background())
	if err != nil {
		t.Fatalf("ListSpeakers: %v", err)
	}
	if len(speakers) != 2 || speakers[0] != "Claire Vo" || speakers[1] != "Shreyas Doshi" {
		t.Errorf("speakers=%v, want [Claire Vo Shreyas Doshi]", speakers)
	}
}

func TestRun_SpeakerVariantsCanonicalised(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTranscript(t, dir, "a.txt",
		"Shreyas Doshi (00:01:00):\n"+answer("First episode thought."))
	writeTranscript(t, dir, "b.txt",
		"Shreyas Dosh (00:03:00):\n"+answer("Second episode, name mistranscribed."))

	store := memory.NewStore()
	ing := ingest.New(newTestParser(), mock.New(4), store)
	if _, err := ing.Run(context.Background(), dir, false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	speakers, err := store.ListSpeakers(context.Background())
	if err != nil {
		t.Fatalf("ListSpeakers: %v", err)
	}
	if len(speakers) != 1 || speakers[0] != "Shreyas Doshi" {
		t.Errorf("speakers=%v, want the variant folded into [Shreyas Doshi]", speakers)
	}
	if got := ing.Speakers(); len(got) != 1 || got[0] != "Shreyas Doshi" {
		t.Errorf("Speakers()=%v, want [Shreyas Doshi]", got)
	}
}

func TestRun_BadFileSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTranscript(t, dir, "good.txt",
		"Claire Vo (00:01:00):\n"+answer("The good file parses fine."))
	if err := os.WriteFile(filepath.Join(dir, "broken.txt"), []byte{0xff, 0xfe, 0x00}, 0o644); err != nil {
		t.Fatalf("write broken.txt: %v", err)
	}

	ing := ingest.New(newTestParser(), mock.New(4), memory.NewStore())
	stats, err := ing.Run(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Files != 1 || stats.FilesFailed != 1 {
		t.Errorf("stats=%+v, want 1 parsed and 1 failed", stats)
	}
	if stats.Parents != 1 {
		t.Errorf("Parents=%d, want 1 from the good file", stats.Parents)
	}
}

func TestRun_MarkerlessFileNotCountedAsFailed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTranscript(t, dir, "good.txt",
		"Claire Vo (00:01:00):\n"+answer("The good file parses fine."))
	// Valid UTF-8 text with no speaker markers: parses cleanly to zero
	// turns, which is empty content, not broken content.
	writeTranscript(t, dir, "notes.txt",
		"Show notes and links for this episode.\n\nNo dialogue here at all.\n")

	ing := ingest.New(newTestParser(), mock.New(4), memory.NewStore())
	stats, err := ing.Run(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.FilesFailed != 0 {
		t.Errorf("FilesFailed=%d, want 0 (marker-less file is not a failure)", stats.FilesFailed)
	}
	if stats.Files != 2 {
		t.Errorf("Files=%d, want 2 (both files parsed)", stats.Files)
	}
	if stats.Turns != 1 || stats.Parents != 1 {
		t.Errorf("stats=%+v, want 1 turn and 1 parent from the good file only", stats)
	}
}

func TestRun_ResetEmptiesCorpusFirst(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	stale := corpus.ParentChunk{ID: "doc_old", Speaker: "Old Speaker", Text: "stale"}
	if err := store.UpsertParents(context.Background(), []corpus.ParentChunk{stale}); err != nil {
		t.Fatalf("UpsertParents: %v", err)
	}

	dir := t.TempDir()
	writeTranscript(t, dir, "a.txt",
		"Claire Vo (00:01:00):\n"+answer("Fresh corpus content."))

	ing := ingest.New(newTestParser(), mock.New(4), store)
	if _, err := ing.Run(context.Background(), dir, true); err != nil {
		t.Fatalf("Run: %v", err)
	}

	speakers, err := store.ListSpeakers(context.Background())
	if err != nil {
		t.Fatalf("ListSpeakers: %v", err)
	}
	if len(speakers) != 1 || speakers[0] != "Claire Vo" {
		t.Errorf("speakers=%v, want stale corpus gone", speakers)
	}
}

func TestRun_EmbedBatchSizeRespected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var b strings.Builder
	for i, speaker := range []string{"Ada One", "Ben Two", "Cal Three"} {
		b.WriteString(speaker)
		b.WriteString(" (00:0")
		b.WriteByte(byte('1' + i))
		b.WriteString(":00):\n")
		b.WriteString(answer("Thought number " + speaker + "."))
		b.WriteString("\n\n")
	}
	writeTranscript(t, dir, "a.txt", b.String())

	embedder := mock.New(4)
	ing := ingest.New(newTestParser(), embedder, memory.NewStore(), ingest.WithEmbedBatchSize(2))
	stats, err := ing.Run(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Children != 3 {
		t.Fatalf("Children=%d, want 3", stats.Children)
	}

	calls := embedder.EmbedBatchCalls()
	if len(calls) != 2 {
		t.Fatalf("EmbedBatch calls=%d, want 2 (batch size 2 over 3 children)", len(calls))
	}
	if len(calls[0].Texts) != 2 || len(calls[1].Texts) != 1 {
		t.Errorf("batch sizes=%d,%d, want 2,1", len(calls[0].Texts), len(calls[1].Texts))
	}
}

func TestRun_EmptyDirErrors(t *testing.T) {
	t.Parallel()

	ing := ingest.New(newTestParser(), mock.New(4), memory.NewStore())
	if _, err := ing.Run(context.Background(), t.TempDir(), false); err == nil {
		t.Fatal("Run: expected error for directory without transcripts")
	}
}

func TestRun_LongTurnSplitsIntoMultipleParents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	para := strings.Repeat("A long paragraph about product strategy and execution. ", 12)
	writeTranscript(t, dir, "a.txt",
		"Shreyas Doshi (00:01:00):\n"+para+"\n\n"+para+"\n\n"+para)

	store := memory.NewStore()
	ing := ingest.New(newTestParser(), mock.New(4), store,
		ingest.WithChunking(700, 100, 256, 32))
	stats, err := ing.Run(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Parents < 2 {
		t.Fatalf("Parents=%d, want the oversize turn split into several", stats.Parents)
	}
	if stats.Children <= stats.Parents {
		t.Errorf("Children=%d Parents=%d, want more children than parents", stats.Children, stats.Parents)
	}

	// Every parent keeps the same speaker and shares the turn timestamp.
	speakers, err := store.ListSpeakers(context.Background())
	if err != nil {
		t.Fatalf("ListSpeakers: %v", err)
	}
	if len(speakers) != 1 || speakers[0] != "Shreyas Doshi" {
		t.Errorf("speakers=%v, want [Shreyas Doshi]", speakers)
	}
}
