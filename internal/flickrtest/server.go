// Package flickrtest provides an in-process Flickr REST API and photo CDN for tests.
package flickrtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Comment is a comment served by comments.getList
type Comment struct {
	AuthorName string
	// RealName is served as null when empty
	RealName   string
	DateCreate int64
	Text       string
}

// Photo is one item of the simulated catalog
type Photo struct {
	ID          string
	Title       string
	Description string
	// Format is served as originalformat; empty omits the attribute
	Format string
	// NoOriginal omits url_o from search results
	NoOriginal bool
	Data       []byte

	Posted     int64
	Taken      string
	LastUpdate int64
	IsPublic   int
	IsFriend   int
	IsFamily   int
	Tags       []string
	// Latitude and Longitude are served only when HasLocation is set
	HasLocation bool
	Latitude    string
	Longitude   string
	Comments    []Comment
}

// Server simulates the Flickr REST endpoint and a CDN serving photo bytes
type Server struct {
	server *httptest.Server

	mu     sync.Mutex
	photos []Photo
	// downloadStatuses queues statuses returned before the real bytes, per photo id
	downloadStatuses map[string][]int
	searchFailures   map[int][]int
	failInfo         map[string]bool
	failComments     map[string]bool
	reportedPages    int
	user             [2]string
	lastQuery        url.Values

	requests  int32
	calls     map[string]int
	downloads map[string]int
}

// NewServer starts a simulator serving photos
func NewServer(photos ...Photo) *Server {
	s := &Server{
		photos:           photos,
		downloadStatuses: make(map[string][]int),
		searchFailures:   make(map[int][]int),
		failInfo:         make(map[string]bool),
		failComments:     make(map[string]bool),
		user:             [2]string{"12345678@N00", "tester"},
		calls:            make(map[string]int),
		downloads:        make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/services/rest/", s.handleREST)
	mux.HandleFunc("/photos/", s.handleDownload)
	s.server = httptest.NewServer(mux)
	return s
}

// Close shuts the server down
func (s *Server) Close() { s.server.Close() }

// Endpoint is the REST endpoint URL
func (s *Server) Endpoint() string { return s.server.URL + "/services/rest/" }

// PhotoURL is the url_o served for a photo id
func (s *Server) PhotoURL(id string) string { return s.server.URL + "/photos/" + id }

// SetPhotos replaces the catalog
func (s *Server) SetPhotos(photos ...Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = photos
}

// QueueDownloadStatus makes the next downloads of id answer with statuses, in order
func (s *Server) QueueDownloadStatus(id string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloadStatuses[id] = append(s.downloadStatuses[id], statuses...)
}

// QueueSearchFailure makes the next searches for page answer with statuses, in order.
// http.StatusOK answers stat=ok without a photos block.
func (s *Server) QueueSearchFailure(page int, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchFailures[page] = append(s.searchFailures[page], statuses...)
}

// FailInfo makes getInfo for id answer stat=fail
func (s *Server) FailInfo(id string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInfo[id] = fail
}

// FailComments makes comments.getList for id answer with a 500
func (s *Server) FailComments(id string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failComments[id] = fail
}

// ReportPages overrides the "pages" value reported by search; 0 reports the real count
func (s *Server) ReportPages(pages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportedPages = pages
}

// SetUser sets the account returned by test.login
func (s *Server) SetUser(nsid, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = [2]string{nsid, username}
}

// Requests returns the number of requests served
func (s *Server) Requests() int { return int(atomic.LoadInt32(&s.requests)) }

// Calls returns how often a REST method was invoked
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Downloads returns how often the binary of id was requested
func (s *Server) Downloads(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[id]
}

// LastQuery returns the query of the most recent REST call
func (s *Server) LastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// ResetCounters zeroes all request counters
func (s *Server) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	atomic.StoreInt32(&s.requests, 0)
	s.calls = make(map[string]int)
	s.downloads = make(map[string]int)
}

func (s *Server) handleREST(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.requests, 1)
	q := r.URL.Query()
	method := q.Get("method")

	s.mu.Lock()
	s.calls[method]++
	s.lastQuery = q
	s.mu.Unlock()

	if q.Get("format") != "json" || q.Get("nojsoncallback") != "1" || q.Get("api_key") == "" {
		writeFail(w, 100, "Invalid API Key (Key has invalid format)")
		return
	}

	switch method {
	case "flickr.photos.search":
		s.search(w, q)
	case "flickr.photos.getInfo":
		s.getInfo(w, q.Get("photo_id"))
	case "flickr.photos.comments.getList":
		s.getComments(w, q.Get("photo_id"))
	case "flickr.test.login":
		s.mu.Lock()
		user := s.user
		s.mu.Unlock()
		writeOK(w, map[string]interface{}{
			"user": map[string]interface{}{
				"id":       user[0],
				"username": map[string]string{"_content": user[1]},
			},
		})
	default:
		writeFail(w, 112, fmt.Sprintf("Method %q not found", method))
	}
}

func (s *Server) search(w http.ResponseWriter, q url.Values) {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = 100
	}

	s.mu.Lock()
	if queued := s.searchFailures[page]; len(queued) > 0 {
		status := queued[0]
		s.searchFailures[page] = queued[1:]
		s.mu.Unlock()
		if status == http.StatusOK {
			writeOK(w, map[string]interface{}{})
			return
		}
		w.WriteHeader(status)
		return
	}
	photos := append([]Photo(nil), s.photos...)
	reported := s.reportedPages
	s.mu.Unlock()

	pages := (len(photos) + perPage - 1) / perPage
	if reported > 0 {
		pages = reported
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(photos) {
		start = len(photos)
	}
	if end > len(photos) {
		end = len(photos)
	}

	items := make([]map[string]interface{}, 0, end-start)
	for _, p := range photos[start:end] {
		item := map[string]interface{}{
			"id":       p.ID,
			"owner":    "12345678@N00",
			"secret":   "abc123",
			"server":   "65535",
			"farm":     66,
			"title":    p.Title,
			"ispublic": p.IsPublic,
			"isfriend": p.IsFriend,
			"isfamily": p.IsFamily,
		}
		if !p.NoOriginal {
			item["url_o"] = s.PhotoURL(p.ID)
			item["height_o"] = 3000
			item["width_o"] = 4000
		}
		if p.Format != "" {
			item["originalformat"] = p.Format
			item["originalsecret"] = "def456"
		}
		items = append(items, item)
	}

	writeOK(w, map[string]interface{}{
		"photos": map[string]interface{}{
			"page":    page,
			"pages":   pages,
			"perpage": perPage,
			"total":   strconv.Itoa(len(photos)),
			"photo":   items,
		},
	})
}

func (s *Server) find(id string) (Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos {
		if p.ID == id {
			return p, true
		}
	}
	return Photo{}, false
}

func (s *Server) getInfo(w http.ResponseWriter, id string) {
	s.mu.Lock()
	fail := s.failInfo[id]
	s.mu.Unlock()

	p, ok := s.find(id)
	if !ok || fail {
		writeFail(w, 1, "Photo \""+id+"\" not found (invalid ID)")
		return
	}

	tags := make([]map[string]interface{}, 0, len(p.Tags))
	for i, t := range p.Tags {
		tags = append(tags, map[string]interface{}{
			"id":       fmt.Sprintf("%s-%d", id, i),
			"author":   "12345678@N00",
			"raw":      strings.ToUpper(t),
			"_content": t,
		})
	}

	photo := map[string]interface{}{
		"id":          p.ID,
		"title":       map[string]string{"_content": p.Title},
		"description": map[string]string{"_content": p.Description},
		"visibility": map[string]interface{}{
			"ispublic": p.IsPublic,
			"isfriend": p.IsFriend,
			"isfamily": p.IsFamily,
		},
		"dates": map[string]interface{}{
			"posted":           strconv.FormatInt(p.Posted, 10),
			"taken":            p.Taken,
			"takengranularity": 0,
			"takenunknown":     "0",
			"lastupdate":       strconv.FormatInt(p.LastUpdate, 10),
		},
		"tags": map[string]interface{}{"tag": tags},
	}
	if p.HasLocation {
		photo["location"] = map[string]interface{}{
			"latitude":  p.Latitude,
			"longitude": p.Longitude,
			"accuracy":  "16",
			"context":   "0",
		}
	}

	writeOK(w, map[string]interface{}{"photo": photo})
}

func (s *Server) getComments(w http.ResponseWriter, id string) {
	s.mu.Lock()
	fail := s.failComments[id]
	s.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	p, ok := s.find(id)
	if !ok {
		writeFail(w, 1, "Photo not found")
		return
	}

	comments := map[string]interface{}{"photo_id": id}
	if len(p.Comments) > 0 {
		list := make([]map[string]interface{}, 0, len(p.Comments))
		for i, c := range p.Comments {
			var realname interface{}
			if c.RealName != "" {
				realname = c.RealName
			}
			list = append(list, map[string]interface{}{
				"id":         fmt.Sprintf("%s-c%d", id, i),
				"author":     "99999999@N00",
				"authorname": c.AuthorName,
				"realname":   realname,
				"datecreate": strconv.FormatInt(c.DateCreate, 10),
				"permalink":  "https://www.flickr.com/photos/tester/" + id + "/#comment" + strconv.Itoa(i),
				"_content":   c.Text,
			})
		}
		comments["comment"] = list
	}

	writeOK(w, map[string]interface{}{"comments": comments})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.requests, 1)
	id := strings.TrimPrefix(r.URL.Path, "/photos/")

	s.mu.Lock()
	s.downloads[id]++
	var status int
	if queued := s.downloadStatuses[id]; len(queued) > 0 {
		status = queued[0]
		s.downloadStatuses[id] = queued[1:]
	}
	s.mu.Unlock()

	if status != 0 {
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "300")
		}
		w.WriteHeader(status)
		return
	}

	p, ok := s.find(id)
	if !ok || p.NoOriginal {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	w.Write(p.Data)
}

func writeOK(w http.ResponseWriter, payload map[string]interface{}) {
	payload["stat"] = "ok"
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func writeFail(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"stat":    "fail",
		"code":    code,
		"message": message,
	})
}
