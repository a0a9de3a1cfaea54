// Package document holds the text of buffers open in the editor. The
// Engine parses these in place of the file on disk while they are open.
package document

import (
	"fmt"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Document is a snapshot of one open buffer.
type Document struct {
	URI     string
	Text    string
	Version int32
}

// Store is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewStore() *Store {
	return &Store{docs: make(map[string]*Document)}
}

// Open records a buffer, replacing any previous one for uri.
func (s *Store) Open(uri, text string, version int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &Document{URI: uri, Text: text, Version: version}
}

// Update applies content changes in order. Each change is a
// protocol.TextDocumentContentChangeEvent with a range (UTF-16 positions)
// or a whole-text replacement. The buffer must be open.
func (s *Store) Update(uri string, version int32, changes []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return fmt.Errorf("document: update %s: not open", uri)
	}
	text := doc.Text
	for i, c := range changes {
		switch change := c.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = change.Text
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				text = change.Text
				continue
			}
			start := change.Range.Start.IndexIn(text)
			end := change.Range.End.IndexIn(text)
			if start > end {
				return fmt.Errorf("document: update %s: change %d: inverted range", uri, i)
			}
			text = text[:start] + change.Text + text[end:]
		default:
			return fmt.Errorf("document: update %s: change %d: unsupported %T", uri, i, c)
		}
	}
	// Snapshots handed out earlier stay valid.
	s.docs[uri] = &Document{URI: uri, Text: text, Version: version}
	return nil
}

// Close forgets a buffer.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Get returns the current snapshot of uri.
func (s *Store) Get(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// Text returns the buffer content of uri.
func (s *Store) Text(uri string) ([]byte, bool) {
	doc, ok := s.Get(uri)
	if !ok {
		return nil, false
	}
	return []byte(doc.Text), true
}

// URIs lists the open buffers.
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		out = append(out, uri)
	}
	return out
}
