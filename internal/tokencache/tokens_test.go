package tokencache

import (
	"context"
	"strings"
	"testing"

	"github.com/hyperjump/tokcache/internal/nlp"
)

func analysed(t *testing.T, sents ...string) *nlp.DocBin {
	t.Helper()
	e, err := nlp.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	return nlp.NewDocBin(e.Tokenize(sents)...)
}

func TestTokens_LowerSurfaceForm(t *testing.T) {
	bin := analysed(t, sample...)
	docs := Tokens(bin, TokenOptions{Lower: true})
	if len(docs) != len(bin.Docs) {
		t.Fatalf("got %d docs, want %d", len(docs), len(bin.Docs))
	}
	for i, d := range bin.Docs {
		if len(docs[i]) != d.Len() {
			t.Fatalf("doc %d: %d tokens, want %d", i, len(docs[i]), d.Len())
		}
		for j, tok := range d.Tokens {
			if docs[i][j] != strings.ToLower(tok.Text) {
				t.Errorf("doc %d token %d = %q, want %q", i, j, docs[i][j], strings.ToLower(tok.Text))
			}
		}
	}
}

func TestTokens_SurfaceKeepsCase(t *testing.T) {
	docs := Tokens(analysed(t, "The cat sat."), TokenOptions{})
	want := []string{"The", "cat", "sat", "."}
	if strings.Join(docs[0], "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", docs[0], want)
	}
}

func TestTokens_LemmaAndIgnore(t *testing.T) {
	bin := analysed(t, "The Dogs were running, quickly!")
	docs := Tokens(bin, TokenOptions{
		Lemma:  true,
		Ignore: []nlp.Attr{nlp.AttrStop, nlp.AttrPunct},
	})
	got := strings.Join(docs[0], " ")
	if got != "dog run quickli" {
		t.Errorf("got %q, want %q", got, "dog run quickli")
	}
}

func TestTokens_EmptyDocStaysInPlace(t *testing.T) {
	docs := Tokens(analysed(t, "a", "", "!"), TokenOptions{Ignore: []nlp.Attr{nlp.AttrPunct}})
	if len(docs) != 3 {
		t.Fatalf("got %d docs", len(docs))
	}
	if docs[1] == nil || len(docs[1]) != 0 || len(docs[2]) != 0 {
		t.Errorf("got %q", docs)
	}
}

func TestCache_Tokenize(t *testing.T) {
	tok := newCounting(t)
	c := New(tok, t.TempDir())
	ctx := context.Background()

	opts := TokenOptions{Lower: true, UseCache: true}
	first, err := c.Tokenize(ctx, sample, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Tokenize(ctx, sample, opts)
	if err != nil {
		t.Fatal(err)
	}
	if tok.calls != 1 {
		t.Errorf("tokenizer calls = %d, want 1", tok.calls)
	}
	if strings.Join(first[1], " ") != "dogs run fast ." || strings.Join(second[1], " ") != "dogs run fast ." {
		t.Errorf("got %q / %q", first[1], second[1])
	}
}
