package transcript

import "strings"

// Lexicon holds the closed word lists that drive speaker-label detection and
// content filtering. It is built once (see [DefaultLexicon]) and treated as
// read-only afterwards, so a single instance may be shared across goroutines.
//
// The lists are deliberately small and curated: they encode what a speaker
// label in an interview transcript is NOT — a sentence fragment, an
// interjection, or a sponsor insert — rather than attempting to recognise
// names positively.
type Lexicon struct {
	// sentenceWords are common function/sentence words. A candidate speaker
	// label containing any of them (after stripping trailing punctuation) is
	// rejected as a false positive.
	sentenceWords map[string]struct{}

	// interjections are single-word non-names. A one-word candidate equal to
	// one of these — or a hyphenated compound with any part in the set — is
	// rejected.
	interjections map[string]struct{}

	// honorifics are the name suffixes that legitimise a trailing period
	// ("Kunal Shah Jr.").
	honorifics []string

	// sponsorSpeakers are pseudo-speaker labels used by ad inserts. Turns
	// attributed to them are discarded regardless of body content.
	sponsorSpeakers map[string]struct{}

	// sponsorPhrases are lowercase substrings whose presence marks a turn as
	// sponsor/ad content.
	sponsorPhrases []string

	// hosts maps lowercase host names to their display form. The first entry
	// of hostOrder is the default identity for orphan continuations.
	hosts     map[string]string
	hostOrder []string
}

var defaultSentenceWords = []string{
	"the", "and", "that", "this", "what", "which", "about", "with",
	"for", "from", "into", "just", "yeah", "yes", "well", "okay",
	"really", "very", "good", "great", "nice", "last", "next",
	"piece", "part", "idea", "point", "thing", "question", "answer",
	"so", "but", "or", "if", "when", "how", "why", "where", "who",
	"it", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would",
	"could", "should", "may", "might", "must", "shall", "can",
	"not", "no", "all", "any", "some", "every", "each", "both",
	"more", "most", "other", "another", "such", "only", "own",
	"same", "than", "too", "also", "now", "then", "here", "there",
}

var defaultInterjections = []string{
	"yeah", "yes", "no", "okay", "ok", "sure", "right", "exactly",
	"absolutely", "totally", "definitely", "certainly", "probably",
	"maybe", "perhaps", "honestly", "actually", "basically", "literally",
	"interesting", "amazing", "awesome", "great", "good", "nice", "cool",
	"wow", "oh", "ah", "um", "uh", "hmm", "well", "so", "like", "true",
	"advertisement", "eventually", "finally", "unfortunately", "fortunately",
	"obviously", "clearly", "apparently", "essentially", "ultimately",
	"minds", "all",
}

var defaultHonorifics = []string{"Jr.", "Sr.", "Dr.", "Mr.", "Ms.", "Mrs."}

var defaultSponsorSpeakers = []string{"advertisement", "ad", "sponsor"}

var defaultSponsorPhrases = []string{
	"brought to you by",
	"this episode is brought",
	"sponsor",
	"promo code",
	"discount code",
	"coupon code",
	"sign up and get",
	"head over to",
	"check out",
	"special offer",
}

// DefaultLexicon returns a Lexicon populated with the built-in word lists and
// the given host identities. Hosts are matched case-insensitively; the first
// host is used as the default speaker for continuation markers that appear
// before any speaker marker.
//
// When hosts is empty the placeholder identity "Host" is used.
func DefaultLexicon(hosts ...string) *Lexicon {
	if len(hosts) == 0 {
		hosts = []string{"Host"}
	}
	lex := &Lexicon{
		sentenceWords:   toSet(defaultSentenceWords),
		interjections:   toSet(defaultInterjections),
		honorifics:      defaultHonorifics,
		sponsorSpeakers: toSet(defaultSponsorSpeakers),
		sponsorPhrases:  defaultSponsorPhrases,
		hosts:           make(map[string]string, len(hosts)),
	}
	for _, h := range hosts {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		if _, ok := lex.hosts[key]; !ok {
			lex.hosts[key] = strings.TrimSpace(h)
			lex.hostOrder = append(lex.hostOrder, key)
		}
	}
	if len(lex.hostOrder) == 0 {
		lex.hosts["host"] = "Host"
		lex.hostOrder = []string{"host"}
	}
	return lex
}

// IsHost reports whether the normalised speaker name identifies a host.
func (l *Lexicon) IsHost(speaker string) bool {
	_, ok := l.hosts[strings.ToLower(strings.TrimSpace(speaker))]
	return ok
}

// DefaultHost returns the display name of the primary host identity.
func (l *Lexicon) DefaultHost() string {
	return l.hosts[l.hostOrder[0]]
}

// IsSponsorSpeaker reports whether the name is a known ad-insert pseudo-speaker.
func (l *Lexicon) IsSponsorSpeaker(speaker string) bool {
	_, ok := l.sponsorSpeakers[strings.ToLower(strings.TrimSpace(speaker))]
	return ok
}

// IsSponsorContent reports whether text contains any sponsor/ad phrase
// (case-insensitive substring match).
func (l *Lexicon) IsSponsorContent(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range l.sponsorPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
