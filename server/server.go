package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cyclopcam/edgeclassify/pkg/classify"
	"github.com/cyclopcam/edgeclassify/pkg/nnload"
	"github.com/cyclopcam/edgeclassify/pkg/overlay"
	"github.com/cyclopcam/edgeclassify/pkg/streak"
	"github.com/cyclopcam/edgeclassify/server/camera"
	"github.com/cyclopcam/edgeclassify/server/config"
	"github.com/cyclopcam/edgeclassify/server/eventdb"
	"github.com/cyclopcam/edgeclassify/server/monitor"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log              logs.Log
	Config           *config.Config
	ShutdownComplete chan error // Receives exactly one value when Shutdown has finished

	model      *nnload.Model
	camera     camera.Camera
	monitor    *monitor.Monitor
	events     *eventdb.EventDB // nil if streak events are not recorded
	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader
	isShutdown atomic.Bool
}

// Create a new server, and start its cycle loop.
// Call ListenHTTP to serve the API.
func NewServer(logger logs.Log, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		Log:              logger,
		Config:           cfg,
		ShutdownComplete: make(chan error, 1),
	}
	if err := s.open(); err != nil {
		s.closeResources()
		return nil, err
	}
	s.setupHttpRoutes()
	s.monitor.Start()
	return s, nil
}

func (s *Server) open() error {
	var err error
	cfg := s.Config

	if s.model, err = nnload.LoadModel(s.Log, cfg.ModelOptions()); err != nil {
		return err
	}
	s.Log.Infof("Loaded model %v with %v classes (%v x %v)", cfg.ModelName, s.model.Labels.Len(), s.model.Config.Width, s.model.Config.Height)
	if err := cfg.ValidateForModel(s.model.Labels.Len()); err != nil {
		return err
	}

	if cfg.CameraImage != "" {
		s.camera, err = camera.NewStillCameraFromFile(cfg.CameraImage)
	} else {
		s.camera, err = camera.NewPatternCamera(s.model.Config.Width, s.model.Config.Height)
	}
	if err != nil {
		return err
	}

	classifier, err := classify.New(s.Log, s.model.Labels, cfg.ClassifierConfig(), nil)
	if err != nil {
		return err
	}
	renderer, err := overlay.NewRenderer(cfg.Layout())
	if err != nil {
		return err
	}

	opt := monitor.Options{
		Classifier:       classifier,
		Device:           s.model.Device,
		Camera:           s.camera,
		Renderer:         renderer,
		CycleInterval:    cfg.CycleInterval(),
		InferenceTimeout: cfg.InferenceTimeout(),
		HistorySize:      cfg.HistorySize,
	}
	if cfg.Streak.Enabled {
		if opt.Streak, err = streak.NewCounter(cfg.Streak.Target, cfg.Streak.Length); err != nil {
			return err
		}
		opt.StreakMessage = cfg.Streak.Message
	}
	if cfg.EventDBPath != "" {
		if s.events, err = eventdb.Open(s.Log, cfg.EventDBPath); err != nil {
			return err
		}
		opt.Events = s.events
	}

	s.monitor, err = monitor.NewMonitor(s.Log, opt)
	return err
}

// Close everything except for the HTTP server
func (s *Server) closeResources() {
	if s.monitor != nil {
		s.monitor.Close()
	}
	if s.camera != nil {
		s.camera.Close()
	}
	if s.model != nil {
		s.model.Close()
	}
	if s.events != nil {
		s.events.Close()
	}
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'", sig.String())
			s.Shutdown()
		}
	}()
}

// Shutdown stops the cycle loop and the HTTP server.
// It is safe to call more than once.
func (s *Server) Shutdown() {
	if s.isShutdown.Swap(true) {
		return
	}
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	var err error
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = s.httpServer.Shutdown(ctx)
		cancel()
		if err != nil {
			s.Log.Warnf("HTTP server shutdown error: %v", err)
		}
	}
	s.closeResources()
	s.Log.Infof("Shutdown complete")
	s.ShutdownComplete <- err
}
