package ingest

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedKind is returned when no extractor handles a file's
// kind.
var ErrUnsupportedKind = errors.New("unsupported file kind")

// Extractor turns raw file bytes into plain text. Implementations for
// binary formats (PDF, office documents, media transcription) register
// themselves by kind; plain text is built in.
type Extractor interface {
	// Kinds lists the file kinds this extractor handles.
	Kinds() []Kind

	// Extract returns the plain text for the file content.
	Extract(content []byte, path string) (string, error)
}

// textExtractor handles plain-text formats. Content that is not valid
// UTF-8 is rejected rather than indexed as mojibake.
type textExtractor struct{}

func (textExtractor) Kinds() []Kind { return []Kind{KindText} }

func (textExtractor) Extract(content []byte, path string) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("file %s is not valid UTF-8 text", path)
	}
	return strings.TrimSpace(string(content)), nil
}

// extractorSet routes content to the extractor registered for its
// kind.
type extractorSet map[Kind]Extractor

func newExtractorSet(extra ...Extractor) extractorSet {
	set := extractorSet{}
	set.register(textExtractor{})
	for _, e := range extra {
		set.register(e)
	}
	return set
}

func (s extractorSet) register(e Extractor) {
	for _, kind := range e.Kinds() {
		s[kind] = e
	}
}

func (s extractorSet) extract(kind Kind, content []byte, path string) (string, error) {
	e, ok := s[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedKind, kind, path)
	}
	return e.Extract(content, path)
}
