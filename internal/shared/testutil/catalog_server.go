package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const (
	apiRoot      = "/reports/api/v2.0/"
	byPathPrefix = apiRoot + "Folders(Path='"
	byPathSuffix = "')/CatalogItems"
	byIDPrefix   = apiRoot + "Folders("
	byIDSuffix   = ")/CatalogItems"
	itemPrefix   = apiRoot + "CatalogItems("
	itemSuffix   = ")/Content/$value"
)

// Entry builds a well-formed listing entry.
func Entry(id, name, remoteType string) map[string]any {
	return map[string]any{"Id": id, "Name": name, "Type": remoteType}
}

// CatalogServer is an in-memory report server speaking the folder-listing and
// content endpoints. Entries may be Entry maps or raw json.RawMessage values.
type CatalogServer struct {
	*httptest.Server

	mu            sync.Mutex
	roots         map[string][]any
	folders       map[string][]any
	content       map[string][]byte
	listStatus    map[string]int
	contentStatus map[string]int
	requests      []string
	contentHits   map[string]int
}

// NewCatalogServer starts a server that is closed when the test ends.
func NewCatalogServer(t *testing.T) *CatalogServer {
	t.Helper()

	s := &CatalogServer{
		roots:         make(map[string][]any),
		folders:       make(map[string][]any),
		content:       make(map[string][]byte),
		listStatus:    make(map[string]int),
		contentStatus: make(map[string]int),
		contentHits:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get(apiRoot+"*", s.handle)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// SetRoot sets the listing returned for Folders(Path='path').
func (s *CatalogServer) SetRoot(path string, entries ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots[path] = entries
}

// SetFolder sets the listing returned for Folders(id).
func (s *CatalogServer) SetFolder(id string, entries ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[id] = entries
}

// SetContent sets the bytes returned for CatalogItems(id)/Content/$value.
func (s *CatalogServer) SetContent(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[id] = data
}

// FailListing makes the listing of a folder id (or root path) answer status.
func (s *CatalogServer) FailListing(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listStatus[key] = status
}

// FailContent makes the content of item id answer status.
func (s *CatalogServer) FailContent(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentStatus[id] = status
}

// Requests returns the request URIs received, as sent on the wire.
func (s *CatalogServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// ContentRequests returns how often the content of id was requested.
func (s *CatalogServer) ContentRequests(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentHits[id]
}

func (s *CatalogServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.RequestURI)
	s.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, byPathPrefix) && strings.HasSuffix(path, byPathSuffix):
		key := strings.TrimSuffix(strings.TrimPrefix(path, byPathPrefix), byPathSuffix)
		s.serveListing(w, key, s.roots)
	case strings.HasPrefix(path, byIDPrefix) && strings.HasSuffix(path, byIDSuffix):
		key := strings.TrimSuffix(strings.TrimPrefix(path, byIDPrefix), byIDSuffix)
		s.serveListing(w, key, s.folders)
	case strings.HasPrefix(path, itemPrefix) && strings.HasSuffix(path, itemSuffix):
		id := strings.TrimSuffix(strings.TrimPrefix(path, itemPrefix), itemSuffix)
		s.serveContent(w, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *CatalogServer) serveListing(w http.ResponseWriter, key string, listings map[string][]any) {
	s.mu.Lock()
	status, failing := s.listStatus[key]
	entries, ok := listings[key]
	s.mu.Unlock()

	if failing {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.Error(w, "folder not found", http.StatusNotFound)
		return
	}
	if entries == nil {
		entries = []any{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"value": entries})
}

func (s *CatalogServer) serveContent(w http.ResponseWriter, id string) {
	s.mu.Lock()
	s.contentHits[id]++
	status, failing := s.contentStatus[id]
	data, ok := s.content[id]
	s.mu.Unlock()

	if failing {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
