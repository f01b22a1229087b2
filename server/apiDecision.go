package server

import (
	"net/http"

	"github.com/cyclopcam/edgeclassify/pkg/gen"
	"github.com/cyclopcam/edgeclassify/server/eventdb"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// Number of events returned by /api/events when no limit is given
const defaultEventLimit = 100

// Example: curl localhost:8080/api/decision/latest
func (s *Server) httpDecisionLatest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	rec := s.monitor.Latest()
	if rec == nil {
		www.PanicBadRequestf("No decision available yet")
	}
	www.SendJSON(w, rec)
}

// Recent cycles, oldest first
func (s *Server) httpDecisionHistory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	www.SendJSON(w, s.monitor.History())
}

// Example: curl localhost:8080/api/events?limit=10
func (s *Server) httpEvents(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	if s.events == nil {
		www.SendJSON(w, []*eventdb.Event{})
		return
	}
	limit := www.QueryInt(r, "limit")
	if limit <= 0 {
		limit = defaultEventLimit
	}
	events, err := s.events.Recent(gen.Clamp(limit, 1, eventdb.MaxRecentEvents))
	www.Check(err)
	www.SendJSON(w, events)
}

// Fetch the screen as it was last rendered.
// Example: curl -o screen.jpg localhost:8080/api/snapshot.jpg
func (s *Server) httpSnapshot(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	img, err := s.monitor.ScreenJPEG()
	www.Check(err)
	if img == nil {
		www.PanicBadRequestf("No image available yet")
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(img)
}

func (s *Server) httpPerf(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	www.SendJSON(w, s.monitor.Perf())
}

func (s *Server) httpStreamDecisions(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpStreamDecisions websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	streamer := NewDecisionStreamer(s.Log)
	streamer.Run(c, s.monitor)
}
