package liveobserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/replisim/replisim"
)

type noopDiffusion struct{}

func (noopDiffusion) TimeStep() float64              { return 1 }
func (noopDiffusion) RandomPosition() replisim.Vec3  { return replisim.Vec3{} }
func (noopDiffusion) InDomain(replisim.Vec3) bool    { return true }
func (noopDiffusion) InSPB(replisim.Vec3) bool       { return false }
func (noopDiffusion) InPeriphery(replisim.Vec3) bool { return false }
func (noopDiffusion) Diffuse(pos replisim.Vec3) replisim.Vec3 { return pos }
func (noopDiffusion) Reflect(pos replisim.Vec3) (replisim.Vec3, error) { return pos, nil }

type noopActivation struct{}

func (noopActivation) IsActiveInitially(*replisim.Particle) bool       { return false }
func (noopActivation) CheckSPBActivation(*replisim.Particle) bool      { return false }
func (noopActivation) CheckPeripheryInactivation(*replisim.Particle) bool { return false }

type noopBinding struct{}

func (noopBinding) ShuffleOrigins([]replisim.OriginIdx)     {}
func (noopBinding) ShuffleParticles([]replisim.ParticleIdx) {}
func (noopBinding) InProximity(*replisim.Particle, *replisim.Origin) bool { return false }
func (noopBinding) CheckBinding(*replisim.Particle, *replisim.Origin) bool { return false }

func testSimulation(t *testing.T) *replisim.Simulation {
	t.Helper()
	chromData := replisim.ChromosomeData{
		ID:       "chrI",
		Contigs:  []replisim.Contig{{Start: 0, End: 100}},
		Granules: make([]replisim.Vec3, 1),
	}
	sim, err := replisim.NewSimulation(1, nil, []replisim.ChromosomeData{chromData}, noopDiffusion{}, noopActivation{}, noopBinding{})
	require.NoError(t, err)
	return sim
}

func TestServerBroadcastsToConnectedClient(t *testing.T) {
	srv := NewServer(nil)
	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWebsocket))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)

	sim := testSimulation(t)
	srv.HandleIterationCompleted(replisim.SimulationEvent{Simulation: sim})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	require.Equal(t, "iteration", evt.Kind)
}

func TestServerDropsWhenClientBufferFull(t *testing.T) {
	srv := NewServer(nil)
	c := &client{send: make(chan Event, 1)}
	srv.clients[c] = struct{}{}

	sim := testSimulation(t)
	for i := 0; i < clientBufSize+10; i++ {
		srv.HandleIterationCompleted(replisim.SimulationEvent{Simulation: sim})
	}
	require.Greater(t, c.dropped, 0)
}
