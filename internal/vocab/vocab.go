// Package vocab loads word-embedding vocabularies used for out-of-vocabulary checks.
package vocab

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Vocabulary is a set of known words.
type Vocabulary interface {
	Contains(word string) bool
	Len() int
}

// Set is an in-memory Vocabulary.
type Set map[string]struct{}

// FromWords builds a Set from words.
func FromWords(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Contains reports whether word is in the set.
func (s Set) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Len returns the number of words.
func (s Set) Len() int {
	return len(s)
}

// Words returns the words in no particular order.
func (s Set) Words() []string {
	out := make([]string, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	return out
}

// Fingerprint is a digest of the sorted words; equal sets have equal fingerprints.
func (s Set) Fingerprint() string {
	words := s.Words()
	sort.Strings(words)
	h := sha256.New()
	for _, w := range words {
		h.Write([]byte(w))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// maxLineBytes bounds a single embedding line (300-d float vectors run to a few KB).
const maxLineBytes = 1 << 20

// Load reads the vocabulary of a GloVe or word2vec text embedding file: the
// first whitespace-separated field of every line is a word. A word2vec
// "<count> <dim>" header on the first line is skipped.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer f.Close()

	set := make(Set)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if isWord2VecHeader(line) {
				continue
			}
		}
		word := strings.TrimLeft(line, " \t")
		if i := strings.IndexAny(word, " \t\r"); i >= 0 {
			word = word[:i]
		}
		if word == "" {
			continue
		}
		set[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %s: %w", path, err)
	}
	return set, nil
}

func isWord2VecHeader(line string) bool {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return false
	}
	for _, f := range fields {
		if _, err := strconv.Atoi(f); err != nil {
			return false
		}
	}
	return true
}

// LoadAll loads every named vocabulary file.
func LoadAll(paths map[string]string) (map[string]Vocabulary, error) {
	out := make(map[string]Vocabulary, len(paths))
	for name, path := range paths {
		v, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("embedding %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
