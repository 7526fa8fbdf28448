// Package entity provides named-entity recognition over chunk text.
//
// Recognition is rule-based: regex recognizers for dates, times, money, and
// percentages, plus a capitalized-sequence recognizer whose type assignment
// comes from gazetteer and context cues. Extraction failures always degrade
// to an empty result so ingestion never fails for lack of NER.
package entity

import (
	"regexp"
	"strings"
	"unicode"
)

// maxInputChars bounds extractor memory on pathological inputs.
const maxInputChars = 100_000

// Closed NER tagset.
const (
	TypePerson   = "PERSON"
	TypeOrg      = "ORG"
	TypeGPE      = "GPE"
	TypeLoc      = "LOC"
	TypeDate     = "DATE"
	TypeTime     = "TIME"
	TypeMoney    = "MONEY"
	TypePercent  = "PERCENT"
	TypeEvent    = "EVENT"
	TypeProduct  = "PRODUCT"
	TypeNorp     = "NORP"
	TypeFacility = "FAC"
	TypeLanguage = "LANGUAGE"
	TypeLaw      = "LAW"
	TypeArt      = "WORK_OF_ART"
)

// Entity is one recognized mention.
type Entity struct {
	// Text is the trimmed mention text (always >= 2 chars).
	Text string
	// Type is drawn from the closed tagset.
	Type string
	// StartChar and EndChar locate the mention in the input.
	StartChar int
	EndChar   int
}

// Extractor recognizes named entities in chunk text.
type Extractor struct {
	patterns []typedPattern
}

type typedPattern struct {
	re  *regexp.Regexp
	typ string
}

var (
	dateRe    = regexp.MustCompile(`\b(?:(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:,\s*\d{4})?|\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2}|\b(?:19|20)\d{2}\b)`)
	timeRe    = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\s*(?:[AaPp][Mm])?\b`)
	moneyRe   = regexp.MustCompile(`(?:\$|€|£)\s?\d[\d,]*(?:\.\d+)?(?:\s*(?:million|billion|trillion|thousand))?|\b\d[\d,]*(?:\.\d+)?\s+dollars\b`)
	percentRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\s?(?:%|percent)\b`)
	capSeqRe  = regexp.MustCompile(`\b[A-Z][a-zA-Z'&.-]+(?:\s+(?:of|de|van|von)\s+[A-Z][a-zA-Z'&.-]+|\s+[A-Z][a-zA-Z'&.-]+)*\b`)
)

// Gazetteers and cues for typing capitalized sequences. Deliberately small;
// callers treat NER as best effort.
var (
	gpeNames = map[string]bool{
		"United States": true, "America": true, "China": true, "India": true,
		"Russia": true, "Germany": true, "France": true, "Japan": true,
		"Canada": true, "Brazil": true, "Australia": true, "Mexico": true,
		"Washington": true, "California": true, "Texas": true, "Europe": true,
		"New York": true, "London": true, "Paris": true, "Beijing": true,
		"Ukraine": true, "Iran": true, "Iraq": true, "Israel": true,
	}
	orgSuffixes = []string{
		"Inc", "Inc.", "Corp", "Corp.", "Corporation", "Company", "Co.",
		"Ltd", "Ltd.", "LLC", "Group", "Institute", "University", "College",
		"Department", "Agency", "Administration", "Committee", "Association",
		"Bank", "Fund", "Foundation", "Organization", "Party", "Council",
	}
	orgNames = map[string]bool{
		"Congress": true, "Senate": true, "Pentagon": true, "NASA": true,
		"FBI": true, "CIA": true, "UN": true, "NATO": true, "EU": true,
		"White House": true, "Supreme Court": true, "Federal Reserve": true,
	}
	personTitles = []string{
		"President", "Senator", "Governor", "Secretary", "Dr.", "Mr.",
		"Mrs.", "Ms.", "Prof.", "Judge", "Mayor", "Chancellor",
		"Prime Minister", "General", "Captain",
	}
	// Common sentence-leading words that the capitalized-sequence matcher
	// would otherwise misread as names.
	stopLeads = map[string]bool{
		"The": true, "This": true, "That": true, "These": true, "Those": true,
		"There": true, "Then": true, "They": true, "When": true, "Where": true,
		"What": true, "Which": true, "While": true, "After": true,
		"Before": true, "During": true, "However": true, "Because": true,
		"And": true, "But": true, "With": true, "From": true, "For": true,
		"Also": true, "It": true, "In": true, "On": true, "At": true,
		"As": true, "By": true, "If": true, "So": true, "We": true,
		"He": true, "She": true, "You": true, "His": true, "Her": true,
		"Our": true, "Their": true, "My": true, "A": true, "An": true,
		"I": true, "Not": true, "No": true, "Yes": true, "Now": true,
		"Today": true, "Tomorrow": true, "Yesterday": true,
	}
)

// NewExtractor returns a ready extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		patterns: []typedPattern{
			{dateRe, TypeDate},
			{timeRe, TypeTime},
			{moneyRe, TypeMoney},
			{percentRe, TypePercent},
		},
	}
}

// Extract recognizes entities in text. The input is truncated at 100,000
// characters. Any internal panic degrades to an empty result.
func (e *Extractor) Extract(text string) (entities []Entity) {
	defer func() {
		if r := recover(); r != nil {
			entities = nil
		}
	}()

	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	claimed := make([]bool, len(text))

	for _, tp := range e.patterns {
		for _, m := range tp.re.FindAllStringIndex(text, -1) {
			if overlapsClaim(claimed, m[0], m[1]) {
				continue
			}
			mention := strings.TrimSpace(text[m[0]:m[1]])
			if len(mention) < 2 {
				continue
			}
			claim(claimed, m[0], m[1])
			entities = append(entities, Entity{
				Text: mention, Type: tp.typ, StartChar: m[0], EndChar: m[1],
			})
		}
	}

	for _, m := range capSeqRe.FindAllStringIndex(text, -1) {
		if overlapsClaim(claimed, m[0], m[1]) {
			continue
		}
		mention := strings.TrimSpace(text[m[0]:m[1]])
		mention = trimStopLead(mention)
		if len(mention) < 2 || !containsLetter(mention) {
			continue
		}
		if stopLeads[mention] {
			continue
		}
		start := m[0] + (m[1] - m[0] - len(mention))
		typ := typeForMention(mention, text, m[0])
		claim(claimed, m[0], m[1])
		entities = append(entities, Entity{
			Text: mention, Type: typ, StartChar: start, EndChar: m[1],
		})
	}

	return entities
}

// ExtractBatch runs extraction over many chunk texts keyed by chunk id.
func (e *Extractor) ExtractBatch(texts map[string]string) map[string][]Entity {
	out := make(map[string][]Entity, len(texts))
	for id, text := range texts {
		out[id] = e.Extract(text)
	}
	return out
}

func typeForMention(mention, text string, start int) string {
	if gpeNames[mention] {
		return TypeGPE
	}
	if orgNames[mention] {
		return TypeOrg
	}
	for _, suffix := range orgSuffixes {
		if strings.HasSuffix(mention, " "+suffix) || mention == suffix {
			return TypeOrg
		}
	}
	// A title leading or immediately preceding the mention marks a person.
	prefix := text[:start]
	for _, title := range personTitles {
		if strings.HasPrefix(mention, title+" ") {
			return TypePerson
		}
		if strings.HasSuffix(strings.TrimRight(prefix, " "), title) {
			return TypePerson
		}
	}
	// Two-word capitalized sequences default to person names; longer or
	// single-token mentions default to organization.
	if len(strings.Fields(mention)) == 2 {
		return TypePerson
	}
	return TypeOrg
}

func trimStopLead(mention string) string {
	fields := strings.Fields(mention)
	for len(fields) > 1 && stopLeads[fields[0]] {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func overlapsClaim(claimed []bool, start, end int) bool {
	for i := start; i < end && i < len(claimed); i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

func claim(claimed []bool, start, end int) {
	for i := start; i < end && i < len(claimed); i++ {
		claimed[i] = true
	}
}
