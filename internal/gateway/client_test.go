package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeGateway is a minimal websocket server for client tests. Frames
// written by the client land on received; Push sends an event frame
// back.
type fakeGateway struct {
	t        *testing.T
	server   *httptest.Server
	received chan frame
	conns    chan *websocket.Conn
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	fg := &fakeGateway{
		t:        t,
		received: make(chan frame, 16),
		conns:    make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{}
	fg.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		fg.conns <- conn
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			fg.received <- f
		}
	}))
	t.Cleanup(fg.server.Close)
	return fg
}

func (fg *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(fg.server.URL, "http")
}

func (fg *fakeGateway) push(event string, data any) {
	fg.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		fg.t.Fatal(err)
	}
	select {
	case conn := <-fg.conns:
		fg.conns <- conn
		if err := conn.WriteJSON(frame{Event: event, Data: raw}); err != nil {
			fg.t.Fatal(err)
		}
	case <-time.After(time.Second):
		fg.t.Fatal("no gateway connection")
	}
}

func startClient(t *testing.T, fg *fakeGateway) *Client {
	t.Helper()
	c := NewClient(fg.url(), "tok", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Stop)
	return c
}

func TestRequestCarriesAPIAndToken(t *testing.T) {
	fg := newFakeGateway(t)
	c := startClient(t, fg)

	if err := c.Request(APIGetContactInfo, map[string]string{"account": "wxid_x"}); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-fg.received:
		if f.API != APIGetContactInfo {
			t.Errorf("api = %q, want %q", f.API, APIGetContactInfo)
		}
		if f.Token != "tok" {
			t.Errorf("token = %q, want tok", f.Token)
		}
		if f.ID == "" {
			t.Error("frame has no correlation id")
		}
		var data map[string]string
		if err := json.Unmarshal(f.Data, &data); err != nil {
			t.Fatal(err)
		}
		if data["account"] != "wxid_x" {
			t.Errorf("data = %v", data)
		}
	case <-time.After(time.Second):
		t.Fatal("request frame never arrived")
	}
}

func TestNotifyHasNoData(t *testing.T) {
	fg := newFakeGateway(t)
	c := startClient(t, fg)

	if err := c.Notify(APIGetLoginUserInfo); err != nil {
		t.Fatal(err)
	}
	select {
	case f := <-fg.received:
		if f.API != APIGetLoginUserInfo {
			t.Errorf("api = %q", f.API)
		}
		if len(f.Data) != 0 {
			t.Errorf("data = %s, want empty", f.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("notify frame never arrived")
	}
}

func TestDispatchToAllHandlersInOrder(t *testing.T) {
	fg := newFakeGateway(t)
	c := startClient(t, fg)

	got := make(chan string, 2)
	c.On(EventScan, func(data json.RawMessage) { got <- "first:" + string(data) })
	c.On(EventScan, func(data json.RawMessage) { got <- "second:" + string(data) })

	fg.push(EventScan, map[string]string{"url": "http://q"})

	for _, want := range []string{"first:", "second:"} {
		select {
		case v := <-got:
			if !strings.HasPrefix(v, want) {
				t.Errorf("handler order: got %q, want prefix %q", v, want)
			}
		case <-time.After(time.Second):
			t.Fatal("handler never invoked")
		}
	}
}

func TestHandlerPanicDoesNotKillReadLoop(t *testing.T) {
	fg := newFakeGateway(t)
	c := startClient(t, fg)

	got := make(chan struct{}, 1)
	c.On(EventMessage, func(json.RawMessage) { panic("boom") })
	c.On(EventMessage, func(json.RawMessage) { got <- struct{}{} })

	fg.push(EventMessage, map[string]string{"msgid": "1"})
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("read loop died after handler panic")
	}

	// Still alive for the next event.
	fg.push(EventMessage, map[string]string{"msgid": "2"})
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("second event never dispatched")
	}
}

func TestServerDropEmitsReconnect(t *testing.T) {
	fg := newFakeGateway(t)
	c := startClient(t, fg)

	reconnect := make(chan struct{}, 1)
	c.On(EventReconnect, func(json.RawMessage) { reconnect <- struct{}{} })

	select {
	case conn := <-fg.conns:
		_ = conn.Close()
	case <-time.After(time.Second):
		t.Fatal("no server-side connection")
	}

	select {
	case <-reconnect:
	case <-time.After(2 * time.Second):
		t.Fatal("dropped connection did not surface as reconnect")
	}
}

func TestStopSuppressesReconnect(t *testing.T) {
	fg := newFakeGateway(t)
	c := startClient(t, fg)

	reconnect := make(chan struct{}, 1)
	c.On(EventReconnect, func(json.RawMessage) { reconnect <- struct{}{} })

	c.Stop()
	select {
	case <-reconnect:
		t.Fatal("deliberate Stop must not look like a lost connection")
	case <-time.After(300 * time.Millisecond):
	}

	if err := c.Request(APISendMessage, nil); err == nil {
		t.Error("Request after Stop should fail")
	}
}

func TestRemoveAllHandlers(t *testing.T) {
	fg := newFakeGateway(t)
	c := startClient(t, fg)

	got := make(chan struct{}, 1)
	c.On(EventLogin, func(json.RawMessage) { got <- struct{}{} })
	c.RemoveAllHandlers()

	fg.push(EventLogin, map[string]string{})
	select {
	case <-got:
		t.Fatal("handler invoked after RemoveAllHandlers")
	case <-time.After(300 * time.Millisecond):
	}
}
