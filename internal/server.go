package internal

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// ContentServer is a fake remote content service serving the "fdid" and
// "fname" endpoints for a single build.
type ContentServer struct {
	*httptest.Server

	build string

	mu       sync.Mutex
	files    map[string][]byte
	statuses map[string]int
	requests map[string]int
	hook     func(r *http.Request)
}

func NewContentServer(t testing.TB, build string) *ContentServer {
	s := &ContentServer{
		build:    build,
		files:    make(map[string][]byte),
		statuses: make(map[string]int),
		requests: make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /casc/file/fdid", func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, r.URL.Query().Get("filedataid"))
	})
	mux.HandleFunc("GET /casc/file/fname", func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, r.URL.Query().Get("filename"))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// BaseURL returns the URL to pass to the content client.
func (s *ContentServer) BaseURL() string {
	return s.URL + "/casc/file/"
}

// SetHook installs a function that runs before each response is written.
func (s *ContentServer) SetHook(hook func(r *http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *ContentServer) AddID(id uint32, data []byte) {
	s.AddName(strconv.FormatUint(uint64(id), 10), data)
}

func (s *ContentServer) AddName(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
}

// FailID makes requests for id answer with the given HTTP status.
func (s *ContentServer) FailID(id uint32, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[strconv.FormatUint(uint64(id), 10)] = status
}

// Requests returns how many requests were made for the identifier.
func (s *ContentServer) Requests(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[name]
}

// RequestsID returns how many requests were made for the file data ID.
func (s *ContentServer) RequestsID(id uint32) int {
	return s.Requests(strconv.FormatUint(uint64(id), 10))
}

// TotalRequests returns the number of requests served so far.
func (s *ContentServer) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.requests {
		total += n
	}
	return total
}

func (s *ContentServer) serve(w http.ResponseWriter, r *http.Request, name string) {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(r)
	}

	s.mu.Lock()
	s.requests[name]++
	status, failing := s.statuses[name]
	data, found := s.files[name]
	s.mu.Unlock()

	switch {
	case r.URL.Query().Get("buildconfig") != s.build:
		http.Error(w, "unknown build", http.StatusNotFound)
	case failing:
		http.Error(w, http.StatusText(status), status)
	case !found:
		http.NotFound(w, r)
	default:
		w.Write(data)
	}
}
