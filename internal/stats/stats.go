// Package stats summarises a tokenized corpus: lengths, vocabulary, most
// frequent tokens and out-of-vocabulary rates against embedding vocabularies.
package stats

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hyperjump/tokcache/internal/nlp"
	"github.com/hyperjump/tokcache/internal/vocab"
)

// DefaultTopN is the number of most frequent tokens reported.
const DefaultTopN = 5

// ErrEmptyCorpus is returned when there is nothing to summarise.
var ErrEmptyCorpus = errors.New("empty corpus")

// TermCount is a token and how often it occurs.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// OOVStat is the out-of-vocabulary figure for one embedding vocabulary.
type OOVStat struct {
	Model string  `json:"model"`
	OOV   int     `json:"oov"`
	Rate  float64 `json:"rate"`
}

// Summary holds the computed corpus statistics.
type Summary struct {
	Texts         int         `json:"texts"`
	AvgChars      float64     `json:"avg_chars"`
	AvgTokens     float64     `json:"avg_tokens"`
	VocabSize     int         `json:"vocab_size"`
	MostCommon    []TermCount `json:"most_common"`
	OOV           []OOVStat   `json:"oov,omitempty"`
	SampleMiddle  string      `json:"sample_middle"`
	SampleQuarter string      `json:"sample_quarter"`
}

// Compute builds a Summary of texts and their tokenized docs (same order and length).
// The vocabulary counts surface forms that are neither stop words nor punctuation.
func Compute(texts []string, docs []*nlp.Doc, vocabs map[string]vocab.Vocabulary, topN int) (*Summary, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyCorpus
	}
	if len(docs) != len(texts) {
		return nil, fmt.Errorf("got %d docs for %d texts", len(docs), len(texts))
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	var chars, tokens int
	for _, s := range texts {
		chars += utf8.RuneCountInString(s)
	}

	counts := make(map[string]int)
	var order []string
	for _, d := range docs {
		tokens += d.Len()
		for _, t := range d.Tokens {
			if t.IsStop || t.IsPunct {
				continue
			}
			if counts[t.Text] == 0 {
				order = append(order, t.Text)
			}
			counts[t.Text]++
		}
	}

	n := len(texts)
	s := &Summary{
		Texts:         n,
		AvgChars:      float64(chars) / float64(n),
		AvgTokens:     float64(tokens) / float64(n),
		VocabSize:     len(counts),
		MostCommon:    mostCommon(counts, order, topN),
		OOV:           oovStats(order, vocabs),
		SampleMiddle:  texts[n/2],
		SampleQuarter: texts[n/4],
	}
	return s, nil
}

// mostCommon orders by count, keeping first-seen order among ties.
func mostCommon(counts map[string]int, order []string, topN int) []TermCount {
	ranked := make([]TermCount, len(order))
	for i, term := range order {
		ranked[i] = TermCount{Term: term, Count: counts[term]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func oovStats(words []string, vocabs map[string]vocab.Vocabulary) []OOVStat {
	if len(vocabs) == 0 {
		return nil
	}
	names := make([]string, 0, len(vocabs))
	for name := range vocabs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]OOVStat, 0, len(names))
	for _, name := range names {
		v := vocabs[name]
		oov := 0
		for _, w := range words {
			if !v.Contains(w) {
				oov++
			}
		}
		st := OOVStat{Model: name, OOV: oov}
		if len(words) > 0 {
			st.Rate = float64(oov) / float64(len(words))
		}
		out = append(out, st)
	}
	return out
}

// Print writes a human-readable report of s to w.
func Print(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "average number of char %.2f\n", s.AvgChars)
	fmt.Fprintf(w, "average number of tokens %.2f\n", s.AvgTokens)
	fmt.Fprintf(w, "total number of vocab without stop words %d\n", s.VocabSize)
	fmt.Fprint(w, "most common:")
	for i, tc := range s.MostCommon {
		sep := " "
		if i > 0 {
			sep = ", "
		}
		fmt.Fprintf(w, "%s(%q, %d)", sep, tc.Term, tc.Count)
	}
	fmt.Fprintln(w)

	if len(s.OOV) > 0 {
		tw := table.NewWriter()
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"word embedding model", "num oov", "oov rate"})
		for _, o := range s.OOV {
			tw.AppendRow(table.Row{o.Model, o.OOV, fmt.Sprintf("%.2f%%", o.Rate*100)})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
		})
		fmt.Fprintln(w, tw.Render())
	}

	fmt.Fprintln(w, "\nexample")
	fmt.Fprintln(w, s.SampleMiddle)
	fmt.Fprintln(w)
	fmt.Fprintln(w, s.SampleQuarter)
}
