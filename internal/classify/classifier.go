// Package classify assigns an importance tier to incoming documents. The
// tier deterministically fixes the parsing strategy used downstream.
package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Tier is the importance class of a document.
type Tier int

// Importance tiers, highest first.
const (
	TierCritical  Tier = 1
	TierImportant Tier = 2
	TierReference Tier = 3
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierImportant:
		return "important"
	case TierReference:
		return "reference"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Strategy is the parsing strategy a tier maps to.
type Strategy string

// Parsing strategies. The tier→strategy mapping is a total function.
const (
	StrategyArticleLevel     Strategy = "article_level"
	StrategyStandardChunking Strategy = "standard_chunking"
	StrategyLightIndexing    Strategy = "light_indexing"
)

// StrategyFor returns the strategy fixed by the tier.
func StrategyFor(tier Tier) Strategy {
	switch tier {
	case TierCritical:
		return StrategyArticleLevel
	case TierImportant:
		return StrategyStandardChunking
	default:
		return StrategyLightIndexing
	}
}

// Result is the transient output of one classification.
type Result struct {
	Tier          Tier
	Strategy      Strategy
	Confidence    float64
	MatchedRule   string
	Topics        []string
	ExplicitMatch bool
}

// Config supplies the classification tables. Zero-value fields fall back to
// built-in defaults so the classifier is never non-functional.
type Config struct {
	ExplicitCritical []string
	TierPatterns     map[Tier][]string
	TierKeywords     map[Tier][]string
	TierSources      map[Tier][]string
	TopicKeywords    map[string][]string
}

// DefaultConfig returns the built-in tables tuned for Italian regulatory
// sources.
func DefaultConfig() Config {
	return Config{
		TierPatterns: map[Tier][]string{
			TierCritical: {
				`(?i)^legge\b`,
				`(?i)^decreto-legge\b`,
				`(?i)^decreto legislativo\b`,
				`(?i)^testo unico\b`,
				`(?i)^d\.?\s?lgs\.?\b`,
			},
			TierImportant: {
				`(?i)^circolare\b`,
				`(?i)^risoluzione\b`,
				`(?i)^provvedimento\b`,
				`(?i)^decreto (ministeriale|direttoriale)\b`,
			},
		},
		TierKeywords: map[Tier][]string{
			TierCritical:  {"gazzetta ufficiale", "conversione in legge"},
			TierImportant: {"interpello", "risposta n."},
		},
		TierSources: map[Tier][]string{
			TierCritical:  {"gazzetta_ufficiale", "normattiva"},
			TierImportant: {"agenzia_entrate", "inps"},
		},
		TopicKeywords: map[string][]string{
			"rottamazione": {"rottamazione", "definizione agevolata"},
			"superbonus":   {"superbonus", "detrazione 110"},
			"iva":          {"iva", "imposta sul valore aggiunto"},
			"irpef":        {"irpef", "imposta sul reddito"},
			"lavoro":       {"contratto di lavoro", "licenziamento", "assunzione"},
		},
	}
}

// Classifier evaluates titles against the configured rule chain. Construct
// one at startup and inject it; instances are immutable and safe for
// concurrent use.
type Classifier struct {
	cfg      Config
	compiled map[Tier][]*regexp.Regexp
}

// New compiles the configuration into a Classifier. Missing tables fall back
// to DefaultConfig.
func New(cfg Config) (*Classifier, error) {
	defaults := DefaultConfig()
	if cfg.TierPatterns == nil {
		cfg.TierPatterns = defaults.TierPatterns
	}
	if cfg.TierKeywords == nil {
		cfg.TierKeywords = defaults.TierKeywords
	}
	if cfg.TierSources == nil {
		cfg.TierSources = defaults.TierSources
	}
	if cfg.TopicKeywords == nil {
		cfg.TopicKeywords = defaults.TopicKeywords
	}

	compiled := make(map[Tier][]*regexp.Regexp, len(cfg.TierPatterns))
	for tier, patterns := range cfg.TierPatterns {
		for _, pattern := range patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("compile tier %d pattern %q: %w", tier, pattern, err)
			}
			compiled[tier] = append(compiled[tier], re)
		}
	}
	return &Classifier{cfg: cfg, compiled: compiled}, nil
}

// tierOrder fixes the evaluation order within each rule stage.
var tierOrder = []Tier{TierCritical, TierImportant, TierReference}

// Classify evaluates the rule chain in strict priority order; the first match
// wins. Source and preview may be empty.
func (c *Classifier) Classify(title, source, preview string) Result {
	topics := c.DetectTopics(title + " " + preview)
	loweredTitle := strings.ToLower(title)

	// 1. Explicit title list, case-insensitive substring either direction.
	// An empty title matches nothing; the reversed containment would
	// otherwise accept it against every entry.
	if loweredTitle != "" {
		for _, explicit := range c.cfg.ExplicitCritical {
			loweredExplicit := strings.ToLower(explicit)
			if strings.Contains(loweredTitle, loweredExplicit) || strings.Contains(loweredExplicit, loweredTitle) {
				return c.result(TierCritical, 1.0, "explicit:"+explicit, topics, true)
			}
		}
	}

	// 2. Pre-compiled regex tables per tier.
	for _, tier := range tierOrder {
		for _, re := range c.compiled[tier] {
			if re.MatchString(title) {
				return c.result(tier, 0.9, "pattern:"+re.String(), topics, false)
			}
		}
	}

	// 3. Exact case-insensitive substrings per tier.
	for _, tier := range tierOrder {
		for _, kw := range c.cfg.TierKeywords[tier] {
			if strings.Contains(loweredTitle, strings.ToLower(kw)) {
				return c.result(tier, 0.85, "keyword:"+kw, topics, false)
			}
		}
	}

	// 4. Source identifier membership.
	for _, tier := range tierOrder {
		for _, s := range c.cfg.TierSources[tier] {
			if source != "" && strings.EqualFold(source, s) {
				return c.result(tier, 0.7, "source:"+s, topics, false)
			}
		}
	}

	// 5. Default.
	return c.result(TierReference, 0.5, "default", topics, false)
}

// DetectTopics scans text against the topic keyword table, independent of the
// tier rule chain.
func (c *Classifier) DetectTopics(text string) []string {
	return DetectTopics(text, c.cfg.TopicKeywords)
}

func (c *Classifier) result(tier Tier, confidence float64, rule string, topics []string, explicit bool) Result {
	return Result{
		Tier:          tier,
		Strategy:      StrategyFor(tier),
		Confidence:    confidence,
		MatchedRule:   rule,
		Topics:        topics,
		ExplicitMatch: explicit,
	}
}

// DetectTopics scans text against a topic→keyword table and returns the
// matched topics sorted for determinism.
func DetectTopics(text string, table map[string][]string) []string {
	lowered := strings.ToLower(text)
	var topics []string
	for topic, keywords := range table {
		for _, kw := range keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				topics = append(topics, topic)
				break
			}
		}
	}
	sort.Strings(topics)
	return topics
}
