// Package nlp wraps bleve's analysis chain as the tokenization engine and defines
// the token and document records it produces.
package nlp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAttr is returned when a token attribute name is not recognised.
var ErrUnknownAttr = errors.New("unknown token attribute")

// Token is one analysed token of a document.
type Token struct {
	Text    string `json:"t"`
	Lemma   string `json:"l"`
	Lower   string `json:"lo"`
	Start   int    `json:"s"`
	End     int    `json:"e"`
	IsStop  bool   `json:"st,omitempty"`
	IsPunct bool   `json:"p,omitempty"`
	IsAlpha bool   `json:"a,omitempty"`
	IsDigit bool   `json:"d,omitempty"`
	LikeNum bool   `json:"n,omitempty"`
	IsOOV   bool   `json:"o,omitempty"`
}

// Doc is the tokenized form of a single input string.
type Doc struct {
	Text   string   `json:"text"`
	Tokens []*Token `json:"tokens"`
}

// Len returns the number of tokens in the document.
func (d *Doc) Len() int {
	return len(d.Tokens)
}

// Attr is a boolean token attribute that callers can filter on.
type Attr int

const (
	AttrStop Attr = iota
	AttrPunct
	AttrAlpha
	AttrDigit
	AttrLikeNum
	AttrOOV
)

var attrNames = map[Attr]string{
	AttrStop:    "is_stop",
	AttrPunct:   "is_punct",
	AttrAlpha:   "is_alpha",
	AttrDigit:   "is_digit",
	AttrLikeNum: "like_num",
	AttrOOV:     "is_oov",
}

// String returns the attribute name as accepted by ParseAttr.
func (a Attr) String() string {
	if name, ok := attrNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Attr(%d)", int(a))
}

// ParseAttr maps a name such as "is_stop" (or "stop") to its attribute.
func ParseAttr(name string) (Attr, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for attr, attrName := range attrNames {
		if n == attrName || "is_"+n == attrName {
			return attr, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAttr, name)
}

// ParseAttrs parses each name with ParseAttr. Empty names are skipped.
func ParseAttrs(names []string) ([]Attr, error) {
	attrs := make([]Attr, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		attr, err := ParseAttr(name)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// Has reports whether the attribute is set on the token.
func (t *Token) Has(a Attr) bool {
	switch a {
	case AttrStop:
		return t.IsStop
	case AttrPunct:
		return t.IsPunct
	case AttrAlpha:
		return t.IsAlpha
	case AttrDigit:
		return t.IsDigit
	case AttrLikeNum:
		return t.LikeNum
	case AttrOOV:
		return t.IsOOV
	}
	return false
}

// HasAny reports whether any of attrs is set on the token.
func (t *Token) HasAny(attrs []Attr) bool {
	for _, a := range attrs {
		if t.Has(a) {
			return true
		}
	}
	return false
}
