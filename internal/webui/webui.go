// Package webui serves the read-only designer UI (spec.md §1 Non-goals:
// "the presentation of the designer UI" is explicitly out of the
// core's scope; this package is the external presentation layer,
// talking to the core only through its exported interfaces).
package webui

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"stairled-core/anim"
	"stairled-core/internal/evbus"
	"stairled-core/pinmap"
)

// AnimationLister is the subset of registry.Registry the UI needs.
type AnimationLister interface {
	Get(name string) (*anim.NamedAnimation, bool)
}

// MapSnapshotter is the subset of pinmap.Mapper the UI needs.
type MapSnapshotter interface {
	Snapshot() pinmap.Snapshot
}

// Server serves the HTTP/WebSocket designer UI.
type Server struct {
	router   *gin.Engine
	upgrader websocket.Upgrader
	registry AnimationLister
	mapper   MapSnapshotter
	bus      *evbus.Bus
	log      logrus.FieldLogger
}

// New constructs a Server. Call Run to start listening.
func New(registry AnimationLister, mapper MapSnapshotter, bus *evbus.Bus, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:   gin.New(),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		registry: registry,
		mapper:   mapper,
		bus:      bus,
		log:      log.WithField("component", "webui"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(gin.Recovery())
	s.router.GET("/api/pinmap", s.handlePinmap)
	s.router.GET("/api/animations/:name", s.handleAnimation)
	s.router.GET("/ws/discovery", s.handleDiscoveryWS)
}

func (s *Server) handlePinmap(c *gin.Context) {
	c.JSON(http.StatusOK, s.mapper.Snapshot())
}

func (s *Server) handleAnimation(c *gin.Context) {
	a, ok := s.registry.Get(c.Param("name"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        a.Name,
		"description": a.Description,
		"duration_ms": a.Timeline.DurationMs(),
		"step_groups": a.StepGroups,
	})
}

// handleDiscoveryWS streams pinmap discovery snapshots to a connected
// browser every time evbus's discovery topic publishes a new one,
// matching the pull-vs-push choice in spec.md §6 ("a self-describing
// discovery artefact ... that a UI can pull or subscribe to").
func (s *Server) handleDiscoveryWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("webui: websocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.bus == nil {
		return
	}
	ec := s.bus.NewConnection("webui-ws")
	sub := ec.Subscribe(evbus.DiscoveryTopic())
	defer sub.Unsubscribe()

	for msg := range sub.Channel() {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg.Payload); err != nil {
			return
		}
	}
}

// Run starts the HTTP server, blocking until it returns an error.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
