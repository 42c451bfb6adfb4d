package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/watchroom/go/internal/netclock"
	"github.com/mcdev12/watchroom/go/internal/room/coordinator"
	"github.com/mcdev12/watchroom/go/internal/room/events"
	"github.com/stretchr/testify/require"
)

type testRoom struct {
	server  *httptest.Server
	service *Service
	control *ControlClient
	clock   *clockwork.FakeClock
}

func newTestRoom(t *testing.T) *testRoom {
	t.Helper()
	fake := clockwork.NewFakeClock()
	cm := NewConnectionManager(DefaultConnectionConfig())
	coord, err := coordinator.New(coordinator.DefaultConfig(), coordinator.Dependencies{
		Clock:       netclock.NewServer(fake),
		Broadcaster: cm,
	})
	require.NoError(t, err)

	svc := NewService(cm, coordinator.NewRunner(coord, fake))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = svc.Start(ctx) }()

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &testRoom{
		server:  server,
		service: svc,
		control: NewControlClient(server.Client(), server.URL),
		clock:   fake,
	}
}

type participant struct {
	client *Client
	inbox  chan events.Message
}

func (r *testRoom) join(t *testing.T) *participant {
	t.Helper()
	inbox := make(chan events.Message, 64)
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws/room"

	client, err := Dial(context.Background(), url, func(msg events.Message) { inbox <- msg })
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return &participant{client: client, inbox: inbox}
}

// expect reads until a message of type typ arrives.
func (p *participant) expect(t *testing.T, typ events.Type) events.Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-p.inbox:
			if msg.Type == typ {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestJoinReceivesWelcomeAndState(t *testing.T) {
	room := newTestRoom(t)
	p := room.join(t)

	var welcome events.WelcomePayload
	require.NoError(t, p.expect(t, events.TypeWelcome).Decode(&welcome))
	require.NotEmpty(t, welcome.ClientID)

	var volume events.SetVolumePayload
	require.NoError(t, p.expect(t, events.TypeSetVolume).Decode(&volume))
	require.InDelta(t, 0.125, volume.Level, 1e-9)

	var state events.StatePayload
	require.NoError(t, p.expect(t, events.TypeState).Decode(&state))
	require.False(t, state.ContentActive)
}

func TestTimeSyncRoundTrip(t *testing.T) {
	room := newTestRoom(t)
	p := room.join(t)
	p.expect(t, events.TypeWelcome)

	room.clock.Advance(3 * time.Second)
	require.NoError(t, p.client.Send(events.TimeSyncRequest(1.5)))

	var sync events.TimeSyncPayload
	require.NoError(t, p.expect(t, events.TypeTimeSync).Decode(&sync))
	require.InDelta(t, 1.5, sync.ClientSentAt, 1e-9)
	require.InDelta(t, 3, sync.ServerNow, 1e-9)
}

func TestVolumeBroadcastReachesEveryParticipant(t *testing.T) {
	room := newTestRoom(t)
	a := room.join(t)
	b := room.join(t)
	a.expect(t, events.TypeState)
	b.expect(t, events.TypeState)

	require.NoError(t, room.control.SetVolume(context.Background(), 1))

	for _, p := range []*participant{a, b} {
		var volume events.SetVolumePayload
		require.NoError(t, p.expect(t, events.TypeSetVolume).Decode(&volume))
		require.InDelta(t, 0.25, volume.Level, 1e-9)
	}
}

func TestControlErrorsMapToCodes(t *testing.T) {
	room := newTestRoom(t)
	ctx := context.Background()

	err := room.control.SetPaused(ctx, true)
	require.Error(t, err)
	require.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	err = room.control.LoadVideo(ctx, "  ", 0)
	require.Error(t, err)
	require.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	err = room.control.Seek(ctx, -1)
	require.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	require.NoError(t, room.control.CloseVideo(ctx))
}

func TestMediaInfoCountsParticipants(t *testing.T) {
	room := newTestRoom(t)
	ctx := context.Background()

	p := room.join(t)
	p.expect(t, events.TypeWelcome)

	info, err := room.control.GetMediaInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, info.Clients)
	require.False(t, info.Active)
	require.Equal(t, string(coordinator.PhaseIdle), info.Phase)

	require.NoError(t, p.client.Close())
	require.Eventually(t, func() bool {
		info, err := room.control.GetMediaInfo(ctx)
		return err == nil && info.Clients == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnectionStats(t *testing.T) {
	room := newTestRoom(t)
	p := room.join(t)
	p.expect(t, events.TypeWelcome)

	res, err := http.Get(room.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(res.Body).Decode(&stats))
	require.Equal(t, 1, stats.TotalConnections)
	require.Len(t, stats.ConnectionIDs, 1)
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	room := newTestRoom(t)
	p := room.join(t)
	p.expect(t, events.TypeWelcome)

	require.NoError(t, p.client.Send(events.Message{Type: "bogus"}))
	require.NoError(t, p.client.Send(events.TimeSyncRequest(0)))

	// the connection survives and keeps being served
	p.expect(t, events.TypeTimeSync)
}

func TestSendAfterCloseFails(t *testing.T) {
	room := newTestRoom(t)
	p := room.join(t)
	require.NoError(t, p.client.Close())

	<-p.client.Done()
	require.ErrorIs(t, p.client.Send(events.CloseVideo()), ErrClientClosed)
}

func newIdleConnection(cm *ConnectionManager, id string) *Connection {
	return &Connection{
		ID:      id,
		Send:    make(chan []byte, cm.config.SendBufferSize),
		Manager: cm,
	}
}

func TestDeliveryToUnregisteredConnection(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	var left []string
	cm.SetHooks(Hooks{OnLeave: func(connID string) { left = append(left, connID) }})

	conn := newIdleConnection(cm, "a")
	cm.registerConnection(conn)
	cm.handleBroadcast(BroadcastMessage{Type: events.TypeSetVolume, Data: []byte(`{}`)})
	require.Len(t, conn.Send, 1)

	cm.unregisterConnection(conn)
	cm.unregisterConnection(conn)
	require.Equal(t, []string{"a"}, left)

	require.NotPanics(t, func() {
		cm.mu.RLock()
		defer cm.mu.RUnlock()
		require.True(t, conn.closed)
		require.True(t, conn.trySend([]byte(`{}`)))
	})
	require.NotPanics(t, func() {
		cm.handleBroadcast(BroadcastMessage{Type: events.TypeSetVolume, Data: []byte(`{}`), ConnID: "a"})
		cm.handleBroadcast(BroadcastMessage{Type: events.TypeSetVolume, Data: []byte(`{}`)})
	})

	// the buffered message is still drained before the close
	msg, ok := <-conn.Send
	require.True(t, ok)
	require.JSONEq(t, `{}`, string(msg))
	_, ok = <-conn.Send
	require.False(t, ok)
}

func TestBroadcastRacesWithUnregister(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	conns := make([]*Connection, 20)
	for i := range conns {
		conns[i] = newIdleConnection(cm, fmt.Sprintf("c%d", i))
		cm.registerConnection(conns[i])
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			cm.handleBroadcast(BroadcastMessage{Type: events.TypeSetVolume, Data: []byte(`{}`)})
		}
	}()
	for _, c := range conns {
		cm.unregisterConnection(c)
	}
	wg.Wait()

	require.Zero(t, cm.GetConnectionStats().TotalConnections)
}
