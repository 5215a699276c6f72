package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/growattcharger/internal/config"

	"github.com/asynkron/protoactor-go/actor"
)

type Server struct {
	port           uint
	httpLog        bool
	rootContext    *actor.RootContext
	chargerActor   *actor.PID
	metricsHandler http.Handler
	requestTimeout time.Duration
	runTimeout     time.Duration
}

func newServer(cfg config.Config, rootContext *actor.RootContext, chargerActor *actor.PID, metricsHandler http.Handler) *Server {
	return &Server{
		port:           cfg.Port,
		rootContext:    rootContext,
		chargerActor:   chargerActor,
		metricsHandler: metricsHandler,
		httpLog:        cfg.HttpLog,
		requestTimeout: 10 * time.Second,
		runTimeout:     25 * time.Second,
	}
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, chargerActor *actor.PID, metricsHandler http.Handler) *http.Server {
	NewServer := newServer(cfg, rootContext, chargerActor, metricsHandler)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
