package tokencache

import (
	"context"
	"strings"

	"github.com/hyperjump/tokcache/internal/nlp"
)

// TokenOptions controls how analysed tokens become plain strings.
type TokenOptions struct {
	Lower bool
	// Lemma selects the lemma instead of the surface form.
	Lemma bool
	// Ignore drops tokens that have any of these attributes.
	Ignore   []nlp.Attr
	UseCache bool
}

// Tokens flattens each document of bin into strings per opts.
func Tokens(bin *nlp.DocBin, opts TokenOptions) [][]string {
	docs := make([][]string, 0, bin.Len())
	for _, d := range bin.Docs {
		doc := make([]string, 0, d.Len())
		for _, t := range d.Tokens {
			if len(opts.Ignore) > 0 && t.HasAny(opts.Ignore) {
				continue
			}
			tok := t.Text
			if opts.Lemma {
				tok = t.Lemma
			}
			if opts.Lower {
				tok = strings.ToLower(tok)
			}
			doc = append(doc, tok)
		}
		docs = append(docs, doc)
	}
	return docs
}

// Tokenize runs LoadOrCreate with opts.UseCache and flattens the result.
func (c *Cache) Tokenize(ctx context.Context, sents []string, opts TokenOptions) ([][]string, error) {
	bin, err := c.LoadOrCreate(ctx, sents, opts.UseCache)
	if err != nil {
		return nil, err
	}
	return Tokens(bin, opts), nil
}
