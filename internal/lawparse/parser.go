package lawparse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/classify"
)

const (
	// headScanLimit bounds the title-metadata fallback scan.
	headScanLimit = 1000
	// minArticleLength filters spurious article matches in noisy text.
	minArticleLength = 30

	latinSuffixes = `bis|ter|quater|quinquies|sexies|septies|octies|novies|decies|undecies|duodecies`
)

var (
	lawDateNumberRe = regexp.MustCompile(`(?i)\b(legge|decreto-legge|decreto legislativo|decreto del presidente della repubblica|d\.?\s?lgs\.?)\s+(\d{1,2}°?\s+[a-zà-ù]+\s+\d{4})\s*,?\s*n\.?\s*(\d+)`)
	lawNumberDateRe = regexp.MustCompile(`(?i)\bn\.?\s*(\d+)\s+del\s+(\d{1,2}°?\s+[a-zà-ù]+\s+\d{4})`)

	sectionRe = regexp.MustCompile(`(?im)^[ \t]*(titolo|capo)\s+([ivxlcdm]+|\d+)[^\n]*`)

	articlePrimaryRe  = regexp.MustCompile(`(?im)^[ \t]*art(?:icolo)?\.?\s+(\d+)(?:\s*-\s*(` + latinSuffixes + `))?\.?[ \t]*([^\n]*)`)
	articleFallbackRe = regexp.MustCompile(`(?m)^Art\.\s+(\d+)(?:-(` + latinSuffixes + `))?\.`)

	attachmentRe = regexp.MustCompile(`(?im)^[ \t]*allegato\s*([a-z0-9]*)\b[^\n]*`)

	commaRe = regexp.MustCompile(`(?m)^[ \t]*(\d+)\.[ \t]+`)

	crossRefRe = regexp.MustCompile(`(?i)\bart(?:icolo)?\.?\s*(\d+(?:-(?:` + latinSuffixes + `))?)(?:\s*,\s*comm[ai]\s+(\d+(?:\s*(?:,|e)\s*\d+)*))?`)

	rubricRe = regexp.MustCompile(`^\(([^)]+)\)`)
)

// Parser decomposes statute text. It never fails: absent structure degrades
// to an empty article list rather than an error.
type Parser struct {
	topics map[string][]string
	logger *zap.Logger
}

// NewParser builds a Parser with the given topic keyword table; a nil table
// falls back to the classifier defaults.
func NewParser(topics map[string][]string, logger *zap.Logger) *Parser {
	if topics == nil {
		topics = classify.DefaultConfig().TopicKeywords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{topics: topics, logger: logger}
}

// Parse decomposes text into a ParsedLaw. Law metadata is taken from the
// title first, then the first portion of the text, accepting both the
// "LEGGE <date>, n. <num>" and "n. <num> del <date>" orderings.
func (p *Parser) Parse(text, title string) ParsedLaw {
	law := ParsedLaw{Title: title}
	law.LawNumber, law.Published = extractLawMeta(title)
	if law.LawNumber == "" {
		head := text
		if len(head) > headScanLimit {
			head = head[:headScanLimit]
		}
		law.LawNumber, law.Published = extractLawMeta(head)
	}

	sections := findSections(text)
	attachmentMarks := attachmentRe.FindAllStringSubmatchIndex(text, -1)
	firstAttachment := len(text)
	if len(attachmentMarks) > 0 {
		firstAttachment = attachmentMarks[0][0]
	}

	matches := articlePrimaryRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		// Noisier texts sometimes defeat the primary pattern entirely; only a
		// zero-match result switches to the strict fallback.
		matches = articleFallbackRe.FindAllStringSubmatchIndex(text, -1)
	}

	for i, m := range matches {
		start := m[0]
		if start >= firstAttachment {
			// Attachment bodies often quote article markers; those belong to
			// the attachment, not the articolato.
			continue
		}
		spanEnd := len(text)
		if i+1 < len(matches) {
			spanEnd = matches[i+1][0]
		}
		for _, am := range attachmentMarks {
			if am[0] > start && am[0] < spanEnd {
				spanEnd = am[0]
				break
			}
		}
		article, ok := p.buildArticle(text, m, start, spanEnd, sections)
		if ok {
			law.Articles = append(law.Articles, article)
		}
	}

	law.Attachments = parseAttachments(text, attachmentMarks)

	// Numeric base orders articles; suffixed variants keep their original
	// relative order among equal bases.
	sort.SliceStable(law.Articles, func(i, j int) bool {
		return law.Articles[i].SortKey < law.Articles[j].SortKey
	})
	return law
}

func (p *Parser) buildArticle(text string, m []int, start, spanEnd int, sections []sectionMark) (Article, bool) {
	fullText := strings.TrimSpace(text[start:spanEnd])
	headerEnd := m[1]
	body := ""
	if headerEnd < spanEnd {
		body = strings.TrimSpace(text[headerEnd:spanEnd])
	}
	if len(fullText) < minArticleLength {
		return Article{}, false
	}

	base, err := strconv.Atoi(text[m[2]:m[3]])
	if err != nil {
		return Article{}, false
	}
	display := "Art. " + text[m[2]:m[3]]
	if m[4] >= 0 {
		display += "-" + strings.ToLower(text[m[4]:m[5]])
	}

	rubric := ""
	if len(m) >= 8 && m[6] >= 0 {
		trailer := strings.TrimSpace(text[m[6]:m[7]])
		if rm := rubricRe.FindStringSubmatch(trailer); rm != nil {
			rubric = strings.TrimSpace(rm[1])
		}
	}

	section, subsection := nearestSections(sections, start)

	return Article{
		DisplayNumber:    display,
		SortKey:          base,
		Title:            rubric,
		FullText:         fullText,
		Commi:            parseCommi(body),
		CrossReferences:  parseCrossReferences(fullText),
		Topics:           classify.DetectTopics(fullText, p.topics),
		ParentSection:    section,
		ParentSubsection: subsection,
	}, true
}

type sectionMark struct {
	offset int
	kind   string // "titolo" or "capo"
	label  string
}

func findSections(text string) []sectionMark {
	var marks []sectionMark
	for _, m := range sectionRe.FindAllStringSubmatchIndex(text, -1) {
		marks = append(marks, sectionMark{
			offset: m[0],
			kind:   strings.ToLower(text[m[2]:m[3]]),
			label:  strings.TrimSpace(text[m[0]:m[1]]),
		})
	}
	return marks
}

// nearestSections returns the closest preceding Titolo and Capo labels by
// offset. Section markers bound structure only; they never own content.
func nearestSections(sections []sectionMark, offset int) (titolo, capo string) {
	for _, s := range sections {
		if s.offset > offset {
			break
		}
		switch s.kind {
		case "titolo":
			titolo = s.label
			// A new Titolo resets the Capo scope.
			capo = ""
		case "capo":
			capo = s.label
		}
	}
	return titolo, capo
}

// parseCommi extracts numbered sub-paragraphs. Numbers must be strictly
// increasing within an article (not necessarily contiguous); regressions are
// treated as embedded enumerations, not commi.
func parseCommi(body string) []Comma {
	matches := commaRe.FindAllStringSubmatchIndex(body, -1)
	var commi []Comma
	last := 0
	for i, m := range matches {
		number, err := strconv.Atoi(body[m[2]:m[3]])
		if err != nil || number <= last {
			continue
		}
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		text := strings.TrimSpace(body[m[1]:end])
		if text == "" {
			continue
		}
		commi = append(commi, Comma{
			Number:          number,
			Text:            text,
			CrossReferences: parseCrossReferences(text),
		})
		last = number
	}
	return commi
}

var commaListSplitRe = regexp.MustCompile(`\s*(?:,|\be\b)\s*`)

// parseCrossReferences extracts "articolo N" / "art. N, comma M" citations,
// expanded one entry per comma and deduplicated within the scanned scope.
func parseCrossReferences(text string) []string {
	seen := make(map[string]struct{})
	var refs []string
	add := func(ref string) {
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	for _, m := range crossRefRe.FindAllStringSubmatch(text, -1) {
		articleNum := strings.ToLower(m[1])
		if m[2] == "" {
			add("art. " + articleNum)
			continue
		}
		for _, c := range commaListSplitRe.Split(m[2], -1) {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			add("art. " + articleNum + ", comma " + c)
		}
	}
	return refs
}

func parseAttachments(text string, marks [][]int) []Attachment {
	var attachments []Attachment
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		label := strings.TrimSpace(text[m[0]:m[1]])
		body := strings.TrimSpace(text[m[1]:end])
		attachments = append(attachments, Attachment{Label: label, Text: body})
	}
	return attachments
}

func extractLawMeta(s string) (string, time.Time) {
	if m := lawDateNumberRe.FindStringSubmatch(s); m != nil {
		if date, ok := parseTextualDate(m[2]); ok {
			return m[3], date
		}
		return m[3], time.Time{}
	}
	if m := lawNumberDateRe.FindStringSubmatch(s); m != nil {
		if date, ok := parseTextualDate(m[2]); ok {
			return m[1], date
		}
		return m[1], time.Time{}
	}
	return "", time.Time{}
}

var textualDateRe = regexp.MustCompile(`(?i)(\d{1,2})°?\s+([a-zà-ù]+)\s+(\d{4})`)

var months = map[string]time.Month{
	"gennaio": time.January, "febbraio": time.February, "marzo": time.March,
	"aprile": time.April, "maggio": time.May, "giugno": time.June,
	"luglio": time.July, "agosto": time.August, "settembre": time.September,
	"ottobre": time.October, "novembre": time.November, "dicembre": time.December,
}

func parseTextualDate(s string) (time.Time, bool) {
	m := textualDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	month, ok := months[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}
