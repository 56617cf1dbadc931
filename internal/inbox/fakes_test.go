package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/nhle/shopnotify/internal/api"
	"github.com/nhle/shopnotify/internal/model"
	"github.com/nhle/shopnotify/internal/realtime"
)

// fakeAPI is an in-memory notification server. Its stats are always
// derived from its items, so they are the ground truth tests reconcile to.
type fakeAPI struct {
	mu       sync.Mutex
	items    []model.Notification
	errs     map[string]error
	calls    map[string]int
	lastList api.ListParams
}

func newFakeAPI(items ...model.Notification) *fakeAPI {
	return &fakeAPI{
		items: append([]model.Notification{}, items...),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeAPI) failOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAPI) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.errs[method]
}

// create adds n on the server side, as a new event would.
func (f *fakeAPI) create(n model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append([]model.Notification{n}, f.items...)
}

func (f *fakeAPI) serverStats() model.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statsLocked()
}

func (f *fakeAPI) statsLocked() model.Stats {
	s := model.EmptyStats()
	for _, n := range f.items {
		s.Total++
		if n.IsRead {
			s.Read++
		} else {
			s.Unread++
		}
		s.ByType[n.Type]++
	}
	return s
}

func (f *fakeAPI) ListNotifications(_ context.Context, p api.ListParams) (*api.Page, error) {
	if err := f.enter("ListNotifications"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = p

	var matched []model.Notification
	for _, n := range f.items {
		if p.UnreadOnly && n.IsRead {
			continue
		}
		matched = append(matched, n)
	}

	start := (p.Page - 1) * p.Limit
	end := min(start+p.Limit, len(matched))
	page := &api.Page{Items: []model.Notification{}}
	if start < len(matched) {
		page.Items = append(page.Items, matched[start:end]...)
	}
	page.Pagination = api.Pagination{
		Total:      len(matched),
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: (len(matched) + p.Limit - 1) / p.Limit,
	}
	return page, nil
}

func (f *fakeAPI) GetStats(context.Context) (model.Stats, error) {
	if err := f.enter("GetStats"); err != nil {
		return model.Stats{}, err
	}
	return f.serverStats(), nil
}

func (f *fakeAPI) MarkRead(_ context.Context, ids []string) error {
	if err := f.enter("MarkRead"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		for k := range f.items {
			if f.items[k].ID == id {
				f.items[k].IsRead = true
			}
		}
	}
	return nil
}

func (f *fakeAPI) MarkAllRead(context.Context) error {
	if err := f.enter("MarkAllRead"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.items {
		f.items[k].IsRead = true
	}
	return nil
}

func (f *fakeAPI) DeleteNotification(_ context.Context, id string) error {
	if err := f.enter("DeleteNotification"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(func(n model.Notification) bool { return n.ID == id })
	return nil
}

func (f *fakeAPI) DeleteAllRead(context.Context) error {
	if err := f.enter("DeleteAllRead"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(func(n model.Notification) bool { return n.IsRead })
	return nil
}

func (f *fakeAPI) removeLocked(match func(model.Notification) bool) {
	kept := f.items[:0:0]
	for _, n := range f.items {
		if !match(n) {
			kept = append(kept, n)
		}
	}
	f.items = kept
}

// fakeConnector stands in for the push connection and lets tests emit
// events as it would.
type fakeConnector struct {
	mu          sync.Mutex
	h           realtime.Handler
	connects    int
	disconnects int
	pings       int
}

func (c *fakeConnector) Connect(context.Context) {
	c.mu.Lock()
	c.connects++
	h := c.h
	c.mu.Unlock()
	h.OnStatus(realtime.StatusConnected)
}

func (c *fakeConnector) Disconnect() {
	c.mu.Lock()
	c.disconnects++
	h := c.h
	c.mu.Unlock()
	h.OnStatus(realtime.StatusDisconnected)
}

func (c *fakeConnector) SendPing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
}

func (c *fakeConnector) counts() (connects, disconnects, pings int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects, c.disconnects, c.pings
}

func (c *fakeConnector) status(s realtime.Status) {
	c.h.OnStatus(s)
}

func (c *fakeConnector) push(n model.Notification) {
	c.h.OnMessage(realtime.Message{Kind: realtime.KindNotification, Notification: n})
}

func (c *fakeConnector) pushStats(s model.Stats) {
	c.h.OnMessage(realtime.Message{Kind: realtime.KindStats, Stats: s})
}

// connectorFactory records every connector it builds.
type connectorFactory struct {
	mu    sync.Mutex
	built []*fakeConnector
}

func (f *connectorFactory) build(h realtime.Handler) Connector {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConnector{h: h}
	f.built = append(f.built, c)
	return c
}

func (f *connectorFactory) last() *fakeConnector {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

func (f *connectorFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

var testTime = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func note(id string, typ model.NotificationType, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      typ,
		Title:     "title " + id,
		Message:   "message " + id,
		IsRead:    read,
		CreatedAt: testTime,
	}
}
