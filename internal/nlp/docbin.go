package nlp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/golang/snappy"
)

// FormatVersion is bumped whenever the blob header or the serialized layout of Doc or Token changes.
const FormatVersion uint16 = 2

var docBinMagic = []byte("TKDB")

// magic, version and the engine fingerprint length byte
const docBinHeaderLen = 7

var (
	// ErrCorruptDocBin is returned for blobs that are truncated or not DocBin data.
	ErrCorruptDocBin = errors.New("corrupt docbin")
	// ErrIncompatibleDocBin is returned for blobs written with a different FormatVersion
	// or by an engine with a different fingerprint.
	ErrIncompatibleDocBin = errors.New("incompatible docbin")
)

// DocBin is a serializable collection of tokenized documents.
type DocBin struct {
	Docs []*Doc `json:"docs"`
	// Engine is the fingerprint of the engine that produced Docs. It is
	// stored in the header, not the payload.
	Engine string `json:"-"`
}

// NewDocBin returns a DocBin holding docs.
func NewDocBin(docs ...*Doc) *DocBin {
	return &DocBin{Docs: docs}
}

// Add appends a document.
func (b *DocBin) Add(doc *Doc) {
	b.Docs = append(b.Docs, doc)
}

// Len returns the number of documents.
func (b *DocBin) Len() int {
	return len(b.Docs)
}

// TokenCount returns the total number of tokens across all documents.
func (b *DocBin) TokenCount() int {
	n := 0
	for _, d := range b.Docs {
		n += d.Len()
	}
	return n
}

// CheckEngine returns ErrIncompatibleDocBin when b was produced by an engine
// with a different fingerprint.
func (b *DocBin) CheckEngine(fingerprint string) error {
	if b.Engine != fingerprint {
		return fmt.Errorf("%w: engine %q, want %q", ErrIncompatibleDocBin, b.Engine, fingerprint)
	}
	return nil
}

// Encode serializes the collection: magic, big-endian format version, the
// engine fingerprint prefixed by its length, then a snappy-compressed JSON payload.
func (b *DocBin) Encode() ([]byte, error) {
	if len(b.Engine) > 255 {
		return nil, fmt.Errorf("engine fingerprint too long: %d bytes", len(b.Engine))
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal docbin: %w", err)
	}
	compressed := snappy.Encode(nil, payload)

	out := make([]byte, docBinHeaderLen, docBinHeaderLen+len(b.Engine)+len(compressed))
	copy(out, docBinMagic)
	binary.BigEndian.PutUint16(out[len(docBinMagic):], FormatVersion)
	out[docBinHeaderLen-1] = byte(len(b.Engine))
	out = append(out, b.Engine...)
	return append(out, compressed...), nil
}

// DecodeDocBin parses data produced by Encode.
func DecodeDocBin(data []byte) (*DocBin, error) {
	if len(data) < docBinHeaderLen || !bytes.Equal(data[:len(docBinMagic)], docBinMagic) {
		return nil, ErrCorruptDocBin
	}
	if v := binary.BigEndian.Uint16(data[len(docBinMagic) : docBinHeaderLen-1]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleDocBin, v, FormatVersion)
	}
	end := docBinHeaderLen + int(data[docBinHeaderLen-1])
	if len(data) < end {
		return nil, ErrCorruptDocBin
	}
	engine := string(data[docBinHeaderLen:end])
	payload, err := snappy.Decode(nil, data[end:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocBin, err)
	}
	var b DocBin
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocBin, err)
	}
	if b.Docs == nil {
		b.Docs = []*Doc{}
	}
	b.Engine = engine
	return &b, nil
}
