// Package inbox holds the client's view of the user's notifications: the
// loaded page and the stats aggregate. Pushed events, REST page fetches and
// local user actions all mutate it through one lock.
package inbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/shopnotify/internal/api"
	"github.com/nhle/shopnotify/internal/model"
	"github.com/nhle/shopnotify/internal/realtime"
	"github.com/nhle/shopnotify/internal/store"
)

const (
	defaultPageSize = 20
	resyncTimeout   = 30 * time.Second
	cacheTimeout    = 5 * time.Second
)

// API is the notification REST surface the inbox persists through.
type API interface {
	ListNotifications(ctx context.Context, p api.ListParams) (*api.Page, error)
	GetStats(ctx context.Context) (model.Stats, error)
	MarkRead(ctx context.Context, ids []string) error
	MarkAllRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	DeleteAllRead(ctx context.Context) error
}

// Connector is the push connection the inbox drives. *realtime.Manager
// satisfies it.
type Connector interface {
	Connect(ctx context.Context)
	Disconnect()
	SendPing()
}

// ConnectorFactory builds the push connection on first Connect, wiring h as
// its only event handler.
type ConnectorFactory func(h realtime.Handler) Connector

// Cache is the offline copy written after every mutation.
type Cache interface {
	SaveNotifications(ctx context.Context, items []model.Notification, info model.PageInfo) error
	LoadNotifications(ctx context.Context) (*store.CachedPage, error)
	SaveStats(ctx context.Context, stats model.Stats) error
	LoadStats(ctx context.Context) (*model.Stats, error)
	Clear(ctx context.Context) error
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithCache persists the page and stats to c after every mutation.
func WithCache(c Cache) Option {
	return func(i *Inbox) {
		i.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Inbox) {
		i.logger = l
	}
}

// WithPageSize sets the page size used until a fetch asks for another.
func WithPageSize(n int) Option {
	return func(i *Inbox) {
		if n > 0 {
			i.defaultPageSize = n
		}
	}
}

// FetchParams selects a page. Zero values reuse the previous request.
type FetchParams struct {
	Page       int
	PageSize   int
	UnreadOnly *bool
	// Append adds the page to the loaded list instead of replacing it.
	Append bool
}

// Snapshot is a copy of the inbox state.
type Snapshot struct {
	Items     []model.Notification
	Stats     model.Stats
	Page      model.PageInfo
	Loading   bool
	Status    realtime.Status
	LastError error
	LastPong  time.Time
	// Stale is true while the content comes from the offline cache.
	Stale bool
	// Seq increases with every snapshot taken, so consumers can drop one
	// that arrives after a newer one.
	Seq uint64
}

// Unread returns the loaded items that are unread.
func (s Snapshot) Unread() []model.Notification {
	var out []model.Notification
	for _, n := range s.Items {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	return out
}

// Inbox is the single source of truth for the UI.
type Inbox struct {
	api             API
	newConnector    ConnectorFactory
	cache           Cache
	logger          *slog.Logger
	defaultPageSize int

	mu       sync.Mutex
	conn     Connector
	epoch    uint64
	items    []model.Notification
	stats    model.Stats
	page     model.PageInfo
	inflight int
	status   realtime.Status
	connects int
	lastErr  error
	lastPong time.Time
	stale    bool
	listener func(Snapshot)
	// changes counts applied live mutations. Restore uses it to detect
	// that fresher data landed while the cache was being read.
	changes uint64
	seq     uint64
}

// New creates an empty inbox backed by client. connect builds the push
// connection lazily; it may be nil for a REST-only inbox.
func New(client API, connect ConnectorFactory, opts ...Option) *Inbox {
	i := &Inbox{
		api:             client,
		newConnector:    connect,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaultPageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "inbox")
	i.resetLocked()
	return i
}

func (i *Inbox) resetLocked() {
	i.items = []model.Notification{}
	i.stats = model.EmptyStats()
	i.page = model.PageInfo{Page: 1, PageSize: i.defaultPageSize}
	i.status = realtime.StatusDisconnected
	i.connects = 0
	i.lastErr = nil
	i.lastPong = time.Time{}
	i.stale = false
}

// SetListener registers the single change listener. It is called after
// every mutation, outside the inbox lock. Passing nil removes it.
func (i *Inbox) SetListener(fn func(Snapshot)) {
	i.mu.Lock()
	i.listener = fn
	i.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (i *Inbox) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snapshotLocked()
}

func (i *Inbox) snapshotLocked() Snapshot {
	i.seq++
	items := make([]model.Notification, len(i.items))
	copy(items, i.items)
	return Snapshot{
		Items:     items,
		Stats:     i.stats.Clone(),
		Page:      i.page,
		Loading:   i.inflight > 0,
		Status:    i.status,
		LastError: i.lastErr,
		LastPong:  i.lastPong,
		Stale:     i.stale,
		Seq:       i.seq,
	}
}

func (i *Inbox) notify() {
	i.mu.Lock()
	fn := i.listener
	var snap Snapshot
	if fn != nil {
		snap = i.snapshotLocked()
	}
	i.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// Connect opens the push connection, building it on first use. It is a
// no-op while already connected.
func (i *Inbox) Connect(ctx context.Context) {
	i.mu.Lock()
	if i.newConnector == nil {
		i.mu.Unlock()
		return
	}
	if i.conn != nil && i.status == realtime.StatusConnected {
		i.mu.Unlock()
		return
	}
	if i.conn == nil {
		i.conn = i.newConnector(i.handler(i.epoch))
	}
	conn := i.conn
	i.mu.Unlock()

	conn.Connect(ctx)
}

// Disconnect closes the push connection. The connector is kept for the
// next Connect.
func (i *Inbox) Disconnect() {
	i.mu.Lock()
	conn := i.conn
	i.mu.Unlock()

	if conn != nil {
		conn.Disconnect()
	}
}

// SendPing asks the connection for a liveness ping.
func (i *Inbox) SendPing() {
	i.mu.Lock()
	conn := i.conn
	i.mu.Unlock()

	if conn != nil {
		conn.SendPing()
	}
}

// Reset disconnects, forgets the connector and returns every field to its
// default. Used on logout, so the offline cache is cleared too.
func (i *Inbox) Reset() {
	i.mu.Lock()
	conn := i.conn
	i.conn = nil
	i.epoch++
	i.resetLocked()
	i.mu.Unlock()

	if conn != nil {
		conn.Disconnect()
	}

	if i.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		defer cancel()
		if err := i.cache.Clear(ctx); err != nil {
			i.logger.Warn("clearing cache", "error", err)
		}
	}

	i.notify()
}

// Restore loads the offline copy, if any, so the UI has something to show
// before the first fetch completes. The state is marked stale until a
// replace fetch succeeds.
func (i *Inbox) Restore(ctx context.Context) error {
	if i.cache == nil {
		return nil
	}

	i.mu.Lock()
	epoch, changes := i.epoch, i.changes
	i.mu.Unlock()

	cached, err := i.cache.LoadNotifications(ctx)
	if err != nil {
		return fmt.Errorf("restoring notifications: %w", err)
	}
	stats, err := i.cache.LoadStats(ctx)
	if err != nil {
		return fmt.Errorf("restoring stats: %w", err)
	}
	if cached == nil && stats == nil {
		return nil
	}

	i.mu.Lock()
	if epoch != i.epoch || changes != i.changes {
		i.mu.Unlock()
		i.logger.Debug("skipping cache restore, live data already loaded")
		return nil
	}
	if cached != nil {
		i.items = append([]model.Notification{}, cached.Items...)
		i.page = cached.Info
		if i.page.PageSize == 0 {
			i.page.PageSize = i.defaultPageSize
		}
	}
	if stats != nil {
		i.stats = stats.Clone()
	}
	i.stale = true
	restored := len(i.items)
	i.mu.Unlock()

	i.logger.Info("restored from cache", "items", restored)
	i.notify()
	return nil
}

// FetchNotifications loads one page. In replace mode the stats snapshot is
// fetched alongside it, so a fresh fetch is also a reconciliation point.
// Nothing is changed if either call fails.
func (i *Inbox) FetchNotifications(ctx context.Context, p FetchParams) error {
	i.mu.Lock()
	req := api.ListParams{
		Page:       i.page.Page,
		Limit:      i.page.PageSize,
		UnreadOnly: i.page.UnreadOnly,
	}
	if p.Page > 0 {
		req.Page = p.Page
	}
	if p.PageSize > 0 {
		req.Limit = p.PageSize
	}
	if p.UnreadOnly != nil {
		req.UnreadOnly = *p.UnreadOnly
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = i.defaultPageSize
	}
	epoch := i.epoch
	i.inflight++
	i.mu.Unlock()
	i.notify()

	defer func() {
		i.mu.Lock()
		i.inflight--
		i.mu.Unlock()
		i.notify()
	}()

	var (
		page  *api.Page
		stats model.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = i.api.ListNotifications(gctx, req)
		return err
	})
	if !p.Append {
		g.Go(func() error {
			var err error
			stats, err = i.api.GetStats(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetching notifications: %w", err)
	}

	i.mu.Lock()
	if epoch != i.epoch {
		i.mu.Unlock()
		return nil
	}
	i.changes++
	if p.Append {
		seen := make(map[string]struct{}, len(i.items))
		for _, n := range i.items {
			seen[n.ID] = struct{}{}
		}
		for _, n := range page.Items {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			i.items = append(i.items, n)
		}
	} else {
		i.items = append([]model.Notification{}, page.Items...)
		i.stats = stats.Clone()
		i.stale = false
	}
	i.page = model.PageInfo{
		Page:       req.Page,
		PageSize:   req.Limit,
		TotalPages: page.Pagination.TotalPages,
		Total:      page.Pagination.Total,
		UnreadOnly: req.UnreadOnly,
	}
	if page.Pagination.Page > 0 {
		i.page.Page = page.Pagination.Page
	}
	i.mu.Unlock()

	i.saveList()
	if !p.Append {
		i.saveStats()
	}
	return nil
}

// RefreshStats replaces the stats with the server snapshot.
func (i *Inbox) RefreshStats(ctx context.Context) error {
	i.mu.Lock()
	epoch := i.epoch
	i.mu.Unlock()

	stats, err := i.api.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("refreshing stats: %w", err)
	}

	i.mu.Lock()
	if epoch != i.epoch {
		i.mu.Unlock()
		return nil
	}
	i.stats = stats.Clone()
	i.changes++
	i.mu.Unlock()

	i.saveStats()
	i.notify()
	return nil
}

// MarkRead persists the read state of ids, flips the matching loaded items
// and then reconciles stats with the server.
func (i *Inbox) MarkRead(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := i.api.MarkRead(ctx, ids); err != nil {
		return fmt.Errorf("marking notifications read: %w", err)
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	i.flipRead(func(n model.Notification) bool {
		_, ok := want[n.ID]
		return ok
	})
	return i.RefreshStats(ctx)
}

// MarkAllRead persists that everything is read, flips every loaded item and
// then reconciles stats with the server.
func (i *Inbox) MarkAllRead(ctx context.Context) error {
	if err := i.api.MarkAllRead(ctx); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}

	i.flipRead(func(model.Notification) bool { return true })
	return i.RefreshStats(ctx)
}

// flipRead marks the matching unread items read and moves them from the
// unread to the read counter until the following refresh replaces stats.
func (i *Inbox) flipRead(match func(model.Notification) bool) {
	i.mu.Lock()
	var flipped []model.Notification
	for k := range i.items {
		if i.items[k].IsRead || !match(i.items[k]) {
			continue
		}
		i.items[k].IsRead = true
		flipped = append(flipped, i.items[k])
	}
	if len(flipped) > 0 {
		i.stats = i.stats.Apply(model.DeltaForMarkRead(flipped...))
		i.changes++
	}
	i.mu.Unlock()

	if len(flipped) == 0 {
		return
	}
	i.saveList()
	i.saveStats()
	i.notify()
}

// DeleteNotification deletes id on the server, then drops it locally and
// adjusts stats by the removal delta.
func (i *Inbox) DeleteNotification(ctx context.Context, id string) error {
	if err := i.api.DeleteNotification(ctx, id); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}

	i.removeWhere(func(n model.Notification) bool {
		return n.ID == id
	})
	return nil
}

// DeleteAllRead deletes every read notification on the server, then drops
// the loaded read items and adjusts stats by the removal delta.
func (i *Inbox) DeleteAllRead(ctx context.Context) error {
	if err := i.api.DeleteAllRead(ctx); err != nil {
		return fmt.Errorf("deleting read notifications: %w", err)
	}

	i.removeWhere(func(n model.Notification) bool {
		return n.IsRead
	})
	return nil
}

func (i *Inbox) removeWhere(match func(model.Notification) bool) {
	i.mu.Lock()
	kept := i.items[:0:0]
	var removed []model.Notification
	for _, n := range i.items {
		if match(n) {
			removed = append(removed, n)
			continue
		}
		kept = append(kept, n)
	}
	i.items = kept
	if len(removed) > 0 {
		i.stats = i.stats.Apply(model.DeltaForRemoval(removed...))
		i.page.Total = max(i.page.Total-len(removed), 0)
		i.changes++
	}
	i.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	i.saveList()
	i.saveStats()
	i.notify()
}

// handler returns the push callbacks bound to epoch. Events from a
// connector dropped by Reset are ignored.
func (i *Inbox) handler(epoch uint64) realtime.Handler {
	return realtime.HandlerFuncs{
		Status: func(s realtime.Status) {
			i.handleStatus(epoch, s)
		},
		Message: func(m realtime.Message) {
			i.handleMessage(epoch, m)
		},
		Error: func(err error) {
			i.handleError(epoch, err)
		},
	}
}

func (i *Inbox) handleStatus(epoch uint64, s realtime.Status) {
	i.mu.Lock()
	if epoch != i.epoch {
		i.mu.Unlock()
		return
	}
	i.status = s
	resync := false
	if s == realtime.StatusConnected {
		resync = i.connects > 0
		i.connects++
		i.lastErr = nil
	}
	i.mu.Unlock()

	i.logger.Debug("connection status", "status", s)
	i.notify()

	if resync {
		go i.resync()
	}
}

// resync corrects stats drift accumulated while the connection was down.
// Failures are only logged; the next reconciliation will catch up.
func (i *Inbox) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	if err := i.RefreshStats(ctx); err != nil {
		i.logger.Warn("resync after reconnect failed", "error", err)
	}
}

func (i *Inbox) handleMessage(epoch uint64, m realtime.Message) {
	i.mu.Lock()
	if epoch != i.epoch {
		i.mu.Unlock()
		return
	}

	var saveList, saveStats bool
	switch m.Kind {
	case realtime.KindNotification:
		if i.indexLocked(m.Notification.ID) >= 0 {
			i.mu.Unlock()
			i.logger.Debug("ignoring duplicate push", "id", m.Notification.ID)
			return
		}
		i.items = append([]model.Notification{m.Notification}, i.items...)
		i.stats = i.stats.Apply(model.DeltaForPush(m.Notification))
		i.page.Total++
		i.changes++
		saveList, saveStats = true, true

	case realtime.KindStats:
		i.stats = m.Stats.Clone()
		i.changes++
		saveStats = true

	case realtime.KindPong:
		i.lastPong = m.Timestamp
		if i.lastPong.IsZero() {
			i.lastPong = time.Now()
		}

	default:
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()

	if saveList {
		i.saveList()
	}
	if saveStats {
		i.saveStats()
	}
	i.notify()
}

func (i *Inbox) handleError(epoch uint64, err error) {
	i.mu.Lock()
	if epoch != i.epoch {
		i.mu.Unlock()
		return
	}
	i.lastErr = err
	i.mu.Unlock()

	i.notify()
}

func (i *Inbox) indexLocked(id string) int {
	for k, n := range i.items {
		if n.ID == id {
			return k
		}
	}
	return -1
}

// saveList writes the loaded page to the cache. Cache failures never fail
// the operation that triggered them.
func (i *Inbox) saveList() {
	if i.cache == nil {
		return
	}

	i.mu.Lock()
	items := append([]model.Notification{}, i.items...)
	info := i.page
	i.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := i.cache.SaveNotifications(ctx, items, info); err != nil {
		i.logger.Warn("caching notifications", "error", err)
	}
}

func (i *Inbox) saveStats() {
	if i.cache == nil {
		return
	}

	i.mu.Lock()
	stats := i.stats.Clone()
	i.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := i.cache.SaveStats(ctx, stats); err != nil {
		i.logger.Warn("caching stats", "error", err)
	}
}
