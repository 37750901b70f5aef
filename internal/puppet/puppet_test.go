package puppet

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/macbridge/internal/bus"
	"github.com/matheus3301/macbridge/internal/cache"
	"github.com/matheus3301/macbridge/internal/gateway"
	"github.com/matheus3301/macbridge/internal/recent"
	"github.com/matheus3301/macbridge/internal/schema"
	"github.com/matheus3301/macbridge/internal/session"
	"github.com/matheus3301/macbridge/internal/status"
)

type fakeRequest struct {
	API  string
	Data map[string]any
}

// fakeConn is an in-memory gateway.Conn. Outbound frames land on
// requests; push simulates inbound events through the registered
// handlers, synchronously like the real read loop.
type fakeConn struct {
	mu       sync.Mutex
	handlers map[string][]gateway.Handler
	requests chan fakeRequest
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		handlers: make(map[string][]gateway.Handler),
		requests: make(chan fakeRequest, 64),
	}
}

func (f *fakeConn) Start(ctx context.Context) error { return nil }

func (f *fakeConn) On(event string, h gateway.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
}

func (f *fakeConn) Request(api string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	f.requests <- fakeRequest{API: api, Data: m}
	return nil
}

func (f *fakeConn) Notify(api string) error {
	f.requests <- fakeRequest{API: api}
	return nil
}

func (f *fakeConn) RemoveAllHandlers() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = make(map[string][]gateway.Handler)
}

func (f *fakeConn) Stop() {}

func (f *fakeConn) push(t *testing.T, event string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	hs := append([]gateway.Handler(nil), f.handlers[event]...)
	f.mu.Unlock()
	if len(hs) == 0 {
		t.Fatalf("no handler bound for %q", event)
	}
	for _, h := range hs {
		h(raw)
	}
}

// awaitRequest blocks until a frame for api goes out, skipping frames
// for other apis.
func awaitRequest(t *testing.T, fc *fakeConn, api string) fakeRequest {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case r := <-fc.requests:
			if r.API == api {
				return r
			}
		case <-deadline:
			t.Fatalf("no %q request went out", api)
		}
	}
}

func waitEvent(t *testing.T, events <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("no %q event published", kind)
		}
	}
}

func assertNoEvent(t *testing.T, events <-chan bus.Event, kind string, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case e := <-events:
			if e.Kind == kind {
				t.Fatalf("unexpected %q event: %+v", kind, e.Payload)
			}
		case <-deadline:
			return
		}
	}
}

func newTestPuppet(t *testing.T) (*Puppet, *fakeConn, <-chan bus.Event) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	b := bus.New()
	machine := status.NewMachine(b)
	cm := cache.NewManager(t.TempDir(), nil)
	rc := recent.New(recent.DefaultCapacity, recent.DefaultMaxAge)
	fc := newFakeConn()
	p := New(fc, b, machine, cm, rc, "test", nil)

	events, unsub := b.Subscribe("puppet.", 64)
	t.Cleanup(unsub)

	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Stop)
	return p, fc, events
}

func login(t *testing.T, p *Puppet, fc *fakeConn) {
	t.Helper()
	fc.push(t, gateway.EventLogin, schema.LoginInfo{
		TaskID:       "task1",
		Account:      "wxid_me",
		AccountAlias: "wxid_me",
		Name:         "Me",
	})
	if !p.LoggedIn() {
		t.Fatal("login push did not reach logged-in state")
	}
}

func TestStartProbesLogin(t *testing.T) {
	p, fc, _ := newTestPuppet(t)

	if p.machine.Current() != status.Connected {
		t.Errorf("state after Start = %s", p.machine.Current())
	}
	awaitRequest(t, fc, gateway.APIGetLoginUserInfo)

	if _, err := p.SelfID(); err != ErrNotLoggedIn {
		t.Errorf("SelfID before login = %v, want ErrNotLoggedIn", err)
	}
}

func TestLoginSeedsSession(t *testing.T) {
	p, fc, events := newTestPuppet(t)
	login(t, p, fc)

	e := waitEvent(t, events, bus.KindLogin)
	if e.Payload.(bus.LoginEvent).ContactID != "wxid_me" {
		t.Errorf("login event = %+v", e.Payload)
	}

	self, err := p.SelfID()
	if err != nil || self != "wxid_me" {
		t.Errorf("SelfID = %q, %v", self, err)
	}

	// Self contact seeded.
	c, err := p.cache.GetContact("wxid_me")
	if err != nil || c == nil || c.Name != "Me" {
		t.Errorf("self contact = %+v, %v", c, err)
	}

	// Slot persisted for the next not-login challenge.
	slot, err := session.LoadSlot(session.SlotPath("test"))
	if err != nil || slot == nil {
		t.Fatalf("slot = %+v, %v", slot, err)
	}
	if slot.Account != "wxid_me" || slot.TaskID != "task1" {
		t.Errorf("slot = %+v", slot)
	}

	// Full syncs kicked off.
	awaitRequest(t, fc, gateway.APIGetContactList)
	awaitRequest(t, fc, gateway.APIGetRoomList)
}

func TestNotLoginUsesSlot(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	fc.push(t, gateway.EventNotLogin, map[string]string{})
	r := awaitRequest(t, fc, gateway.APILoginScan)
	if r.Data["account"] != "wxid_me" || r.Data["task_id"] != "task1" {
		t.Errorf("challenge not scoped to slot: %+v", r.Data)
	}
}

func TestNotLoginWithoutSlot(t *testing.T) {
	_, fc, _ := newTestPuppet(t)

	fc.push(t, gateway.EventNotLogin, map[string]string{})
	r := awaitRequest(t, fc, gateway.APILoginScan)
	if len(r.Data) != 0 {
		t.Errorf("anonymous challenge carried data: %+v", r.Data)
	}
}

func TestLogoutEmitsLogoutAndReset(t *testing.T) {
	p, fc, events := newTestPuppet(t)
	login(t, p, fc)
	waitEvent(t, events, bus.KindLogin)

	fc.push(t, gateway.EventLogout, map[string]string{"reason": "kicked"})

	e := waitEvent(t, events, bus.KindLogout)
	if e.Payload.(bus.LogoutEvent).ContactID != "wxid_me" {
		t.Errorf("logout event = %+v", e.Payload)
	}
	waitEvent(t, events, bus.KindReset)

	if p.cache.Ready() {
		t.Error("cache still open after logout")
	}
	if slot, _ := session.LoadSlot(session.SlotPath("test")); slot != nil {
		t.Error("slot survived logout")
	}
	if _, err := p.SelfID(); err != ErrNotLoggedIn {
		t.Errorf("SelfID after logout = %v", err)
	}
}

func TestScanPushRendersQR(t *testing.T) {
	_, fc, events := newTestPuppet(t)

	fc.push(t, gateway.EventScan, schema.ScanInfo{URL: "https://login.weixin.qq.com/l/abc"})
	e := waitEvent(t, events, bus.KindScan)
	scan := e.Payload.(bus.ScanEvent)
	if scan.QRCode == "" {
		t.Fatal("scan event without rendered challenge")
	}
	if scan.QRCode == "https://login.weixin.qq.com/l/abc" {
		t.Error("challenge url passed through unrendered")
	}
}

func TestDing(t *testing.T) {
	p, _, events := newTestPuppet(t)

	p.Ding("probe")
	e := waitEvent(t, events, bus.KindDong)
	if e.Payload.(bus.DongEvent).Data != "probe" {
		t.Errorf("dong = %+v", e.Payload)
	}
}

func TestSlotFileIsScopedToHome(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	home, _ := os.UserHomeDir()
	path := session.SlotPath("test")
	if len(path) <= len(home) || path[:len(home)] != home {
		t.Fatalf("slot path %q escapes home %q", path, home)
	}
}
