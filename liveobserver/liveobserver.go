// Package liveobserver implements replisim.Observer as a websocket
// push server, so a browser dashboard can watch a simulation run
// live. Grounded on niceyeti-tabular's server/server.go push model:
// one upgraded connection per client, a buffered broadcast channel per
// client, and a non-blocking send so a slow or gone client never
// blocks the simulation loop.
package liveobserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/replisim/replisim"
)

const (
	writeWait     = 1 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	clientBufSize = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the JSON payload pushed to every connected client.
type Event struct {
	Kind        string  `json:"kind"`
	CurrentTime float64 `json:"currentTime"`
	OriginID    string  `json:"originId,omitempty"`
	OriginState string  `json:"originState,omitempty"`
	ParticleIdx int     `json:"particleIdx,omitempty"`
}

// Server implements replisim.Observer and serves a websocket endpoint
// that every connected client receives a copy of every event on.
type Server struct {
	logger replisim.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn    *websocket.Conn
	send    chan Event
	dropped int
}

var _ replisim.Observer = (*Server)(nil)

// NewServer constructs a Server. Pass nil for logger to use a no-op
// logger.
func NewServer(logger replisim.Logger) *Server {
	if logger == nil {
		logger = replisim.NewNopLogger()
	}
	return &Server{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeWebsocket upgrades r to a websocket connection and registers
// it to receive every subsequent event, until the connection breaks.
func (s *Server) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("liveobserver: upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan Event, clientBufSize)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.pump(c)
}

func (s *Server) pump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.conn.Close()
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast pushes e to every connected client without ever blocking
// the simulation loop: a full client buffer drops the event.
func (s *Server) broadcast(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- e:
		default:
			c.dropped++
			s.logger.Warnf("liveobserver: dropped event, client buffer full (%d dropped so far)", c.dropped)
		}
	}
}

func (s *Server) HandleSimulationStarted(e replisim.SimulationEvent) {
	s.broadcast(Event{Kind: "started", CurrentTime: e.Simulation.CurrentTime()})
}

func (s *Server) HandleIterationCompleted(e replisim.SimulationEvent) {
	s.broadcast(Event{Kind: "iteration", CurrentTime: e.Simulation.CurrentTime()})
}

func (s *Server) HandleParticleDiffused(e replisim.ParticleEvent) {
	s.broadcast(Event{Kind: "particleDiffused", CurrentTime: e.Simulation.CurrentTime(), ParticleIdx: int(e.ParticleIdx)})
}

func (s *Server) HandleParticleActivationStateChanged(e replisim.ParticleEvent) {
	s.broadcast(Event{Kind: "particleActivation", CurrentTime: e.Simulation.CurrentTime(), ParticleIdx: int(e.ParticleIdx)})
}

func (s *Server) HandleParticleBindingStateChanged(e replisim.ParticleEvent) {
	s.broadcast(Event{Kind: "particleBinding", CurrentTime: e.Simulation.CurrentTime(), ParticleIdx: int(e.ParticleIdx)})
}

func (s *Server) HandleOriginFired(e replisim.OriginEvent) {
	s.broadcast(Event{Kind: "originFired", CurrentTime: e.Simulation.CurrentTime(), OriginID: e.Origin.ID(), OriginState: e.Origin.State().String()})
}

func (s *Server) HandleOriginReplicated(e replisim.OriginEvent) {
	s.broadcast(Event{Kind: "originReplicated", CurrentTime: e.Simulation.CurrentTime(), OriginID: e.Origin.ID(), OriginState: e.Origin.State().String()})
}
