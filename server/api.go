package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

// Maximum number of /api/snapshot.jpg requests per second, per client
const SnapshotRequestLimit = 20

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// Each rate limited route gets its own limiter, keyed by client IP
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/classes", s.httpClasses)
	handle("GET", "/api/decision/latest", s.httpDecisionLatest)
	handle("GET", "/api/decision/history", s.httpDecisionHistory)
	handle("GET", "/api/events", s.httpEvents)
	ratelimited("GET", "/api/snapshot.jpg", s.httpSnapshot, SnapshotRequestLimit, time.Second)
	handle("GET", "/api/perf", s.httpPerf)
	handle("GET", "/api/ws/decisions", s.httpStreamDecisions)

	s.httpRouter = router
}

type pingJSON struct {
	Greeting string `json:"greeting"`
	Model    string `json:"model"`
	Status   string `json:"status"`
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, &pingJSON{
		Greeting: "I am edgeclassify",
		Model:    s.Config.ModelName,
		Status:   s.model.Device.Status().String(),
	})
}

func (s *Server) httpClasses(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.model.Labels.Names())
}
