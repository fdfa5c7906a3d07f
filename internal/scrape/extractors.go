package scrape

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var italianMonths = map[string]time.Month{
	"gennaio":   time.January,
	"febbraio":  time.February,
	"marzo":     time.March,
	"aprile":    time.April,
	"maggio":    time.May,
	"giugno":    time.June,
	"luglio":    time.July,
	"agosto":    time.August,
	"settembre": time.September,
	"ottobre":   time.October,
	"novembre":  time.November,
	"dicembre":  time.December,
}

var (
	textualDateRe = regexp.MustCompile(`(?i)\b(\d{1,2})°?\s+(gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|novembre|dicembre)\s+(\d{4})\b`)
	slashDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	isoDateRe     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

	// Document number variants, e.g. "n. 199", "n° 19/E", "numero 13-bis".
	documentNumberRe = regexp.MustCompile(`(?i)\bn(?:umero)?\s*[.°]?\s*(\d+(?:/[A-Za-z]+)?(?:-[a-z]+)?)`)
	trailingDateRe   = regexp.MustCompile(`(?i)\b(?:del|di)\s+\d{4}\s*$`)
)

// ParseItalianDate finds the first valid date in s, trying the textual
// Italian form first, then dd/mm/yyyy, then ISO. The first valid match wins.
func ParseItalianDate(s string) (time.Time, bool) {
	if m := textualDateRe.FindStringSubmatch(s); m != nil {
		day, err := strconv.Atoi(m[1])
		year, yerr := strconv.Atoi(m[3])
		month, ok := italianMonths[strings.ToLower(m[2])]
		if err == nil && yerr == nil && ok && day >= 1 && day <= 31 {
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
		}
	}
	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
		}
	}
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ExtractDocumentNumber scans the candidate texts in order and returns the
// first document number found. A trailing date token ("del 2025") is not part
// of the number; the match before it wins.
func ExtractDocumentNumber(candidates ...string) string {
	for _, text := range candidates {
		if text == "" {
			continue
		}
		stripped := trailingDateRe.ReplaceAllString(text, "")
		if m := documentNumberRe.FindStringSubmatch(stripped); m != nil {
			return m[1]
		}
	}
	return ""
}

// sectionKeywords maps a section label to the keywords that imply it.
var sectionKeywords = map[string][]string{
	"serie_generale":   {"serie generale"},
	"tributario":       {"agenzia delle entrate", "tributar", "imposta", "fiscale"},
	"lavoro":           {"inps", "lavoro", "previdenza"},
	"giustizia":        {"ministero della giustizia", "tribunale"},
	"sanita":           {"ministero della salute", "sanitar"},
}

// DetectSection scans text for section keywords and returns the matching
// label, falling back to the supplied default.
func DetectSection(text, fallback string) string {
	lowered := strings.ToLower(text)
	for section, keywords := range sectionKeywords {
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				return section
			}
		}
	}
	return fallback
}

var docTypePrefixes = []struct {
	prefix  string
	docType string
}{
	{"decreto-legge", "decreto_legge"},
	{"decreto legislativo", "decreto_legislativo"},
	{"decreto del presidente", "dpr"},
	{"decreto", "decreto"},
	{"legge", "legge"},
	{"circolare", "circolare"},
	{"risoluzione", "risoluzione"},
	{"provvedimento", "provvedimento"},
	{"comunicato", "comunicato"},
}

// DetectDocumentType inspects the title prefix and returns a normalized
// document type, defaulting to "documento".
func DetectDocumentType(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	for _, p := range docTypePrefixes {
		if strings.HasPrefix(lowered, p.prefix) {
			return p.docType
		}
	}
	return "documento"
}
