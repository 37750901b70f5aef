// Package puppet is the heart of the daemon: it adapts the
// asynchronous, event-pushing gateway into a synchronous
// request/response surface, correlating push events with pending
// lookups and keeping the entity cache reconciled.
package puppet

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/macbridge/internal/bus"
	"github.com/matheus3301/macbridge/internal/cache"
	"github.com/matheus3301/macbridge/internal/gateway"
	"github.com/matheus3301/macbridge/internal/pending"
	"github.com/matheus3301/macbridge/internal/queue"
	"github.com/matheus3301/macbridge/internal/recent"
	"github.com/matheus3301/macbridge/internal/schema"
	"github.com/matheus3301/macbridge/internal/session"
	"github.com/matheus3301/macbridge/internal/status"
)

// awaitTimeout is how long a suspended lookup waits before re-issuing
// its sync request.
const awaitTimeout = 3 * time.Second

// maxJoinResolveAttempts bounds the name→id resolution retries for
// room-join events before giving up with an empty invitee list.
const maxJoinResolveAttempts = 3

// roomAddDirectLimit is the member count above which the gateway
// requires an invitation flow instead of a direct add.
const roomAddDirectLimit = 40

// Puppet drives the gateway session: lifecycle, event classification,
// cache reconciliation and the synchronous accessor surface.
type Puppet struct {
	conn    gateway.Conn
	bus     *bus.Bus
	machine *status.Machine
	cache   *cache.Manager
	recent  *recent.Cache
	logger  *zap.Logger
	session string

	contactQueue *queue.Executor
	roomQueue    *queue.Executor
	memberQueue  *queue.Executor
	reconnector  *queue.Debouncer

	contacts     *pending.Registry[*schema.ContactPayload]
	contactLists *pending.Registry[int]
	remarks      *pending.Registry[string]
	rooms        *pending.Registry[*schema.RoomPayload]
	roomLists    *pending.Registry[[]string]
	members      *pending.Registry[map[string]schema.RoomMemberPayload]
	roomCreates  *pending.Registry[string]
	roomQrcodes  *pending.Registry[string]
	friendAcks   *pending.Registry[*schema.FriendInfo]

	mu             sync.RWMutex
	selfID         string
	taskID         string
	contactsSynced bool
	roomsSynced    bool
}

// New creates a puppet bound to a gateway connection. sessionName
// scopes the persisted login slot and the cache directory.
func New(conn gateway.Conn, b *bus.Bus, machine *status.Machine, cacheMgr *cache.Manager, recentStore *recent.Cache, sessionName string, logger *zap.Logger) *Puppet {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Puppet{
		conn:    conn,
		bus:     b,
		machine: machine,
		cache:   cacheMgr,
		recent:  recentStore,
		logger:  logger,
		session: sessionName,

		contactQueue: queue.NewExecutor("contact", queue.DefaultInterval, logger),
		roomQueue:    queue.NewExecutor("room", queue.DefaultInterval, logger),
		memberQueue:  queue.NewExecutor("room-member", queue.DefaultInterval, logger),

		contacts:     pending.NewRegistry[*schema.ContactPayload](),
		contactLists: pending.NewRegistry[int](),
		remarks:      pending.NewRegistry[string](),
		rooms:        pending.NewRegistry[*schema.RoomPayload](),
		roomLists:    pending.NewRegistry[[]string](),
		members:      pending.NewRegistry[map[string]schema.RoomMemberPayload](),
		roomCreates:  pending.NewRegistry[string](),
		roomQrcodes:  pending.NewRegistry[string](),
		friendAcks:   pending.NewRegistry[*schema.FriendInfo](),
	}
	p.reconnector = queue.NewDebouncer(queue.DefaultDebounceWindow, p.restart)
	return p
}

// Start connects to the gateway and asks who is logged in. The dial
// retries forever; only ctx cancellation aborts.
func (p *Puppet) Start(ctx context.Context) error {
	if err := p.machine.Transition(status.Pending); err != nil {
		return err
	}
	if err := p.conn.Start(ctx); err != nil {
		return err
	}
	p.bindHandlers()
	if err := p.machine.Transition(status.Connected); err != nil {
		return err
	}
	if err := p.conn.Notify(gateway.APIGetLoginUserInfo); err != nil {
		p.logger.Warn("login probe failed", zap.Error(err))
	}
	return nil
}

// Stop tears the session down: connection, queues, cache.
func (p *Puppet) Stop() {
	if err := p.machine.Transition(status.PendingStop); err != nil {
		p.logger.Debug("stop from terminal state", zap.Error(err))
	}
	p.reconnector.Stop()
	p.conn.RemoveAllHandlers()
	p.conn.Stop()
	p.contactQueue.Stop()
	p.roomQueue.Stop()
	p.memberQueue.Stop()
	if err := p.cache.Release(); err != nil {
		p.logger.Warn("cache release failed", zap.Error(err))
	}
	if err := p.machine.Transition(status.Disconnected); err != nil {
		p.logger.Debug("already disconnected", zap.Error(err))
	}
}

// restart is the debounced reconnect path: full teardown of the
// transport and cache, then a fresh Start. Queues survive so callers
// blocked in lookups keep their retry cadence.
func (p *Puppet) restart(reason string) {
	p.logger.Warn("reconnecting after gateway instability", zap.String("reason", reason))

	p.conn.RemoveAllHandlers()
	p.conn.Stop()
	if err := p.cache.Release(); err != nil {
		p.logger.Warn("cache release failed", zap.Error(err))
	}
	p.mu.Lock()
	p.contactsSynced = false
	p.roomsSynced = false
	p.mu.Unlock()
	if err := p.machine.Transition(status.Pending); err != nil {
		p.logger.Error("cannot leave current state for reconnect", zap.Error(err))
		return
	}
	if err := p.conn.Start(context.Background()); err != nil {
		p.logger.Error("reconnect dial aborted", zap.Error(err))
		return
	}
	p.bindHandlers()
	if err := p.machine.Transition(status.Connected); err != nil {
		p.logger.Error("bad state after reconnect", zap.Error(err))
		return
	}
	if err := p.conn.Notify(gateway.APIGetLoginUserInfo); err != nil {
		p.logger.Warn("login probe failed after reconnect", zap.Error(err))
	}
}

// Logout asks the gateway to end the login session. The gateway
// confirms with a logout push, which performs the local teardown.
func (p *Puppet) Logout(ctx context.Context) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	p.mu.RLock()
	taskID := p.taskID
	p.mu.RUnlock()
	return p.conn.Request(gateway.APILogout, map[string]string{
		"my_account": self,
		"task_id":    taskID,
	})
}

// SelfID returns the logged-in account id, or ErrNotLoggedIn.
func (p *Puppet) SelfID() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.selfID == "" {
		return "", ErrNotLoggedIn
	}
	return p.selfID, nil
}

// LoggedIn reports whether a login completed.
func (p *Puppet) LoggedIn() bool {
	return p.machine.Current() == status.LoggedIn
}

func (p *Puppet) emit(kind string, payload any) {
	p.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func (p *Puppet) slotPath() string {
	return session.SlotPath(p.session)
}
