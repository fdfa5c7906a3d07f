// Package lawparse decomposes Italian statute text into its structural
// units: articles, commi, cross-references, section headers, and attachments.
package lawparse

import "time"

// ParsedLaw is the full decomposition of one statute. It is transient and
// owned by a single Parse call.
type ParsedLaw struct {
	Title       string
	LawNumber   string
	Published   time.Time
	Articles    []Article
	Attachments []Attachment
}

// Article is one numbered statute section.
type Article struct {
	DisplayNumber    string // e.g. "Art. 2" or "Art. 2-bis"
	SortKey          int    // numeric base used for ordering
	Title            string // optional parenthesized rubric
	FullText         string
	Commi            []Comma
	CrossReferences  []string
	Topics           []string
	ParentSection    string // nearest preceding Titolo
	ParentSubsection string // nearest preceding Capo
}

// Comma is one numbered sub-paragraph within an article.
type Comma struct {
	Number          int
	Text            string
	CrossReferences []string
}

// Attachment is one "Allegato" block, parsed independently of article
// boundaries.
type Attachment struct {
	Label string
	Text  string
}
