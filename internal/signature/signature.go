// Package signature identifies file formats from the magic bytes at the start of a file.
package signature

import (
	"bytes"
	"sort"

	"github.com/Qwejay/Qconverto/models"
)

// Anywhere marks a Marker that may appear at any position in the scanned window.
const Anywhere = -1

// Marker is a secondary byte string a container prefix needs before it counts as a match.
type Marker struct {
	Offset int // Anywhere or a fixed byte offset
	Bytes  []byte
}

// Signature maps a byte prefix at a fixed offset to a format label and its owning category.
// Every marker must be present for the signature to match.
type Signature struct {
	Label    string
	Category models.Category
	Offset   int
	Prefix   []byte
	Markers  []Marker
}

// Length is the matched length used to rank candidates.
func (s Signature) Length() int {
	n := s.Offset + len(s.Prefix)
	for _, m := range s.Markers {
		n += len(m.Bytes)
	}
	return n
}

func (s Signature) matches(header []byte) bool {
	end := s.Offset + len(s.Prefix)
	if len(header) < end || !bytes.Equal(header[s.Offset:end], s.Prefix) {
		return false
	}
	for _, m := range s.Markers {
		if m.Offset == Anywhere {
			if !bytes.Contains(header, m.Bytes) {
				return false
			}
			continue
		}
		mEnd := m.Offset + len(m.Bytes)
		if len(header) < mEnd || !bytes.Equal(header[m.Offset:mEnd], m.Bytes) {
			return false
		}
	}
	return true
}

// Candidate is one surviving signature match.
type Candidate struct {
	Category      models.Category
	Format        string
	MatchedLength int
}

// Matcher holds an immutable signature table. It is safe for concurrent use.
type Matcher struct {
	sigs    []Signature
	minSize int
}

// New creates a Matcher. Registration order breaks ties between equal-length matches.
func New(sigs ...Signature) *Matcher {
	m := &Matcher{sigs: make([]Signature, len(sigs))}
	copy(m.sigs, sigs)
	for _, s := range m.sigs {
		if n := s.Offset + len(s.Prefix); n > m.minSize {
			m.minSize = n
		}
		for _, mk := range s.Markers {
			if mk.Offset == Anywhere {
				continue
			}
			if n := mk.Offset + len(mk.Bytes); n > m.minSize {
				m.minSize = n
			}
		}
	}
	return m
}

// Default returns a Matcher over the built-in signature table.
func Default() *Matcher {
	return New(builtin()...)
}

// MinHeaderSize reports the smallest header window that covers every fixed-offset prefix and marker.
func (m *Matcher) MinHeaderSize() int {
	return m.minSize
}

// Signatures returns a copy of the registered table.
func (m *Matcher) Signatures() []Signature {
	out := make([]Signature, len(m.sigs))
	copy(out, m.sigs)
	return out
}

// Identify returns every signature matching header, longest match first.
// An empty slice means nothing matched; an empty header is invalid input.
func (m *Matcher) Identify(header []byte) ([]Candidate, error) {
	if len(header) == 0 {
		return nil, models.NewError(models.ErrInvalidInput, "", "empty header", nil)
	}

	candidates := []Candidate{}
	for _, s := range m.sigs {
		if s.matches(header) {
			candidates = append(candidates, Candidate{
				Category:      s.Category,
				Format:        s.Label,
				MatchedLength: s.Length(),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MatchedLength > candidates[j].MatchedLength
	})
	return candidates, nil
}
