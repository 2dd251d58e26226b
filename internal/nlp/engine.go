package nlp

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	regexptokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
)

// DefaultPattern splits text into words (with inner apostrophes), numbers and
// single punctuation or symbol runes. Whitespace never produces a token.
const DefaultPattern = `\p{L}[\p{L}\p{M}\p{N}'’_]*|\p{N}+(?:[.,:/]\p{N}+)*\p{L}*|\S`

// Lexicon is the word set used to flag out-of-vocabulary tokens.
// Fingerprint identifies its contents; equal word sets must return equal values.
type Lexicon interface {
	Contains(word string) bool
	Fingerprint() string
}

// Engine tokenizes and annotates text. It is safe to reuse across calls but
// holds no global state; construct one with NewEngine and pass it around.
type Engine struct {
	pattern   string
	tokenizer analysis.Tokenizer
	lower     analysis.TokenFilter
	lemma     []analysis.TokenFilter
	stopWords analysis.TokenMap
	lexicon   Lexicon

	// fingerprint covers every setting that changes token annotations.
	fingerprint string
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	pattern   string
	stopWords []string
	lexicon   Lexicon
}

// WithPattern overrides the tokenizer regular expression.
func WithPattern(pattern string) EngineOption {
	return func(o *engineOptions) {
		if pattern != "" {
			o.pattern = pattern
		}
	}
}

// WithStopWords replaces the built-in English stop-word list.
func WithStopWords(words ...string) EngineOption {
	return func(o *engineOptions) { o.stopWords = words }
}

// WithVocabulary sets the lexicon used for Token.IsOOV. Without it no token is OOV.
func WithVocabulary(lex Lexicon) EngineOption {
	return func(o *engineOptions) { o.lexicon = lex }
}

// NewEngine builds the analysis chain: regexp tokenizer, then lowercase,
// possessive and porter filters for lemmas.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	o := engineOptions{pattern: DefaultPattern}
	for _, opt := range opts {
		opt(&o)
	}

	re, err := regexp.Compile(o.pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile tokenizer pattern: %w", err)
	}

	stop := analysis.NewTokenMap()
	if o.stopWords != nil {
		for _, w := range o.stopWords {
			stop.AddToken(w)
		}
	} else if err := stop.LoadBytes(en.EnglishStopWords); err != nil {
		return nil, fmt.Errorf("failed to load stop words: %w", err)
	}

	return &Engine{
		pattern:   o.pattern,
		tokenizer: regexptokenizer.NewRegexpTokenizer(re),
		lower:     lowercase.NewLowerCaseFilter(),
		lemma: []analysis.TokenFilter{
			en.NewPossessiveFilter(),
			porter.NewPorterStemmer(),
		},
		stopWords:   stop,
		lexicon:     o.lexicon,
		fingerprint: fingerprint(o.pattern, stop, o.lexicon),
	}, nil
}

func fingerprint(pattern string, stop analysis.TokenMap, lex Lexicon) string {
	words := make([]string, 0, len(stop))
	for w := range stop {
		words = append(words, w)
	}
	sort.Strings(words)

	h := sha256.New()
	fmt.Fprintf(h, "pattern:%s\x00stop:%s\x00", pattern, strings.Join(words, "\n"))
	if lex != nil {
		fmt.Fprintf(h, "vocab:%s", lex.Fingerprint())
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Fingerprint identifies the pattern, stop words and vocabulary of e. Batches
// analysed by engines with different fingerprints may annotate tokens differently.
func (e *Engine) Fingerprint() string {
	return e.fingerprint
}

// Pattern returns the tokenizer expression in use.
func (e *Engine) Pattern() string {
	return e.pattern
}

// IsStopWord reports whether the lower-cased word is in the stop-word list.
func (e *Engine) IsStopWord(word string) bool {
	return e.stopWords[word]
}

// Tokenize analyses each string in order and returns one Doc per input.
func (e *Engine) Tokenize(sents []string) []*Doc {
	docs := make([]*Doc, len(sents))
	for i, s := range sents {
		docs[i] = e.Analyze(s)
	}
	return docs
}

// Analyze tokenizes and annotates a single string.
func (e *Engine) Analyze(text string) *Doc {
	input := []byte(text)
	stream := e.tokenizer.Tokenize(input)

	doc := &Doc{Text: text, Tokens: make([]*Token, 0, len(stream))}
	// The filters rewrite terms in place, so they run on copies rather than
	// on slices aliasing input.
	work := make(analysis.TokenStream, 0, len(stream))
	for _, tok := range stream {
		doc.Tokens = append(doc.Tokens, &Token{
			Text:  string(tok.Term),
			Start: tok.Start,
			End:   tok.End,
		})
		work = append(work, &analysis.Token{
			Term:     append([]byte(nil), tok.Term...),
			Start:    tok.Start,
			End:      tok.End,
			Position: tok.Position,
			Type:     tok.Type,
		})
	}

	work = e.lower.Filter(work)
	for i, tok := range work {
		doc.Tokens[i].Lower = string(tok.Term)
	}
	for _, f := range e.lemma {
		work = f.Filter(work)
	}
	for i, tok := range work {
		t := doc.Tokens[i]
		t.Lemma = string(tok.Term)
		if t.Lemma == "" {
			t.Lemma = t.Lower
		}
		e.annotate(t)
	}
	return doc
}

func (e *Engine) annotate(t *Token) {
	t.IsPunct = allRunes(t.Text, unicode.IsPunct)
	t.IsAlpha = allRunes(t.Text, unicode.IsLetter)
	t.IsDigit = allRunes(t.Text, unicode.IsDigit)
	t.LikeNum = likeNumber(t.Text)
	t.IsStop = e.stopWords[t.Lower]
	if e.lexicon != nil {
		t.IsOOV = !e.lexicon.Contains(t.Lower)
	}
}

// likeNumber accepts digit runs with inner separators such as "3.5", "1,000" or "1/2".
func likeNumber(s string) bool {
	s = strings.TrimLeft(s, "+-")
	if s == "" || !unicode.IsDigit([]rune(s)[0]) {
		return false
	}
	return allRunes(s, func(r rune) bool {
		return unicode.IsDigit(r) || strings.ContainsRune(".,:/", r)
	})
}

func allRunes(s string, pred func(rune) bool) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !pred(r) {
			return false
		}
	}
	return true
}
