package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gasflow/ops-console/internal/gateway"
	"github.com/gasflow/ops-console/internal/lifecycle"
	"github.com/gasflow/ops-console/internal/notices"
	"github.com/gasflow/ops-console/internal/orders"
	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/metrics"
	"github.com/gasflow/ops-console/pkg/pagination"
)

const (
	queueOrders = "orders"
	queueCounts = "status_counts"
)

// ErrRowBusy is returned when an order already has a mutation in flight.
var ErrRowBusy = pkgerrors.New(pkgerrors.CodeConflict, "order is already being updated")

// Gateway is the slice of the order backend the coordinator needs.
type Gateway interface {
	ListOrders(ctx context.Context, q gateway.ListQuery) (*gateway.OrderList, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	SetStatus(ctx context.Context, id string, status enums.OrderStatus, notes string) (*orders.Order, error)
	SetPaymentReceived(ctx context.Context, id string, received bool, notes string) (*orders.Order, error)
	CountOrders(ctx context.Context, filter orders.Filter, tab enums.StatusTab) (int, error)
}

// LoadResult describes what happened to one LoadPage call.
type LoadResult struct {
	Token   uint64
	Applied bool
	Count   int
}

// View is an immutable copy of the coordinator state for rendering.
type View struct {
	Orders       []orders.Order          `json:"orders"`
	Pagination   pagination.Pagination   `json:"pagination"`
	StatusCounts map[enums.StatusTab]int `json:"statusCounts"`
	Filter       ViewFilter              `json:"filter"`
	Page         int                     `json:"page"`
	Limit        int                     `json:"limit"`
	Loading      bool                    `json:"loading"`
	Updating     []string                `json:"updating"`
}

// ViewFilter is the wire form of the active filter.
type ViewFilter struct {
	Tab       enums.StatusTab `json:"tab"`
	Search    string          `json:"search,omitempty"`
	StartDate string          `json:"startDate,omitempty"`
	EndDate   string          `json:"endDate,omitempty"`
}

// IsUpdating reports whether the row for id is locked in this view.
func (v View) IsUpdating(id string) bool {
	for _, u := range v.Updating {
		if u == id {
			return true
		}
	}
	return false
}

// Coordinator owns the console's working set of orders. Network calls happen
// outside the state lock; a sequence token decides which list response wins.
type Coordinator struct {
	gw       Gateway
	notifier notices.Notifier
	logg     *logger.Logger
	limit    int

	refetch *Coalescer
	counts  *Coalescer

	mu           sync.Mutex
	orders       []orders.Order
	pagination   pagination.Pagination
	statusCounts map[enums.StatusTab]int
	// filter and page describe the applied working set; wantFilter and
	// wantPage are what the latest LoadPage asked for.
	filter     orders.Filter
	page       int
	wantFilter orders.Filter
	wantPage   int
	seq        uint64
	countSeq   uint64
	loading    bool
	updating   map[string]struct{}
}

type Option func(*options)

type options struct {
	notifier notices.Notifier
	logg     *logger.Logger
	limit    int
	window   time.Duration
	clock    Clock
	metrics  *metrics.RefreshMetrics
	ctx      context.Context
}

func WithNotifier(n notices.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logg = l }
}

func WithPageSize(limit int) Option {
	return func(o *options) { o.limit = limit }
}

// WithDebounce sets the coalescing window and clock of the background refreshes.
func WithDebounce(window time.Duration, clock Clock) Option {
	return func(o *options) {
		o.window = window
		o.clock = clock
	}
}

func WithMetrics(m *metrics.RefreshMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithContext sets the context background refreshes run under.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

func New(gw Gateway, opts ...Option) *Coordinator {
	o := options{
		notifier: notices.Discard{},
		logg:     logger.Nop(),
		limit:    pagination.DefaultLimit,
		window:   DefaultWindow,
		clock:    SystemClock,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.notifier == nil {
		o.notifier = notices.Discard{}
	}
	if o.logg == nil {
		o.logg = logger.Nop()
	}

	c := &Coordinator{
		gw:           gw,
		notifier:     o.notifier,
		logg:         o.logg,
		limit:        pagination.NormalizeLimit(o.limit),
		orders:       []orders.Order{},
		statusCounts: make(map[enums.StatusTab]int),
		filter:       orders.Filter{Tab: enums.StatusTabAll},
		page:         1,
		wantFilter:   orders.Filter{Tab: enums.StatusTabAll},
		wantPage:     1,
		updating:     make(map[string]struct{}),
	}
	coalescerOpts := []CoalescerOption{WithClock(o.clock), WithRefreshMetrics(o.metrics), WithBaseContext(o.ctx)}
	c.refetch = NewCoalescer(queueOrders, o.window, c.refetchActive, coalescerOpts...)
	c.counts = NewCoalescer(queueCounts, o.window, c.refreshCountsQuietly, coalescerOpts...)
	return c
}

// LoadPage fetches one page for filter and replaces the working set, unless a
// newer LoadPage was issued while this one was in flight.
func (c *Coordinator) LoadPage(ctx context.Context, filter orders.Filter, page int) (LoadResult, error) {
	page = pagination.NormalizePage(page)

	c.mu.Lock()
	c.seq++
	token := c.seq
	c.wantFilter = filter
	c.wantPage = page
	c.loading = true
	limit := c.limit
	c.mu.Unlock()

	list, err := c.gw.ListOrders(ctx, gateway.ListQuery{Filter: filter, Page: page, Limit: limit})
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "filter", filter.String()), "order page load failed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.seq {
		c.logg.Debug(c.logg.WithField(ctx, "token", token), "discarding superseded order page")
		return LoadResult{Token: token}, nil
	}
	c.loading = false
	if err != nil {
		return LoadResult{Token: token}, err
	}

	next := make([]orders.Order, len(list.Orders))
	for i, o := range list.Orders {
		next[i] = o.Clone()
	}
	c.orders = next
	c.pagination = list.Pagination
	c.filter = filter
	c.page = page
	return LoadResult{Token: token, Applied: true, Count: len(next)}, nil
}

// Reload refetches the most recently requested filter and page, so a failed
// LoadPage is retried rather than forgotten.
func (c *Coordinator) Reload(ctx context.Context) (LoadResult, error) {
	c.mu.Lock()
	filter, page := c.wantFilter, c.wantPage
	c.mu.Unlock()
	return c.LoadPage(ctx, filter, page)
}

// RefreshStatusCounts counts every tab under the active search and date range,
// independent of the active tab.
func (c *Coordinator) RefreshStatusCounts(ctx context.Context) error {
	c.mu.Lock()
	c.countSeq++
	token := c.countSeq
	filter := c.filter
	c.mu.Unlock()

	tabs := enums.StatusTabs()
	results := make([]int, len(tabs))
	g, gctx := errgroup.WithContext(ctx)
	for i, tab := range tabs {
		g.Go(func() error {
			n, err := c.gw.CountOrders(gctx, filter, tab)
			if err != nil {
				return err
			}
			results[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	counts := make(map[enums.StatusTab]int, len(tabs))
	for i, tab := range tabs {
		counts[tab] = results[i]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if token == c.countSeq {
		c.statusCounts = counts
	}
	return nil
}

// Resolve returns the visible copy of an order, or fetches it.
func (c *Coordinator) Resolve(ctx context.Context, id string) (orders.Order, error) {
	if o, ok := c.Order(id); ok {
		return o, nil
	}
	o, err := c.gw.GetOrder(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	return *o, nil
}

// Order returns the visible order with id.
func (c *Coordinator) Order(id string) (orders.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexOf(id); idx >= 0 {
		return c.orders[idx].Clone(), true
	}
	return orders.Order{}, false
}

// MutateStatus validates and sends a status change for one order.
func (c *Coordinator) MutateStatus(ctx context.Context, order orders.Order, target enums.OrderStatus, notes string) error {
	notes = lifecycle.ResolveNotes(order, target, notes)
	return c.RunRowAction(ctx, order.ID, func(ctx context.Context) error {
		if err := lifecycle.Validate(order, target, notes); err != nil {
			return err
		}
		_, err := c.gw.SetStatus(ctx, order.ID, target, notes)
		return err
	}, "Order "+displayNumber(order)+" is now "+lifecycle.FormatStatus(target))
}

// SetPaymentReceived records cash collection on a pickup order.
func (c *Coordinator) SetPaymentReceived(ctx context.Context, order orders.Order, received bool, notes string) error {
	return c.RunRowAction(ctx, order.ID, func(ctx context.Context) error {
		if !order.IsPickup() {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment is only recorded on pickup orders")
		}
		_, err := c.gw.SetPaymentReceived(ctx, order.ID, received, strings.TrimSpace(notes))
		return err
	}, "Payment updated for order "+displayNumber(order))
}

// RunRowAction locks the row for id, runs action, then either refreshes the
// view or reports the failure. A second action on a locked row returns
// ErrRowBusy without running.
func (c *Coordinator) RunRowAction(ctx context.Context, id string, action func(ctx context.Context) error, success string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !c.lockRow(id) {
		return ErrRowBusy
	}
	defer c.unlockRow(id)

	ctx = c.logg.WithOrderID(ctx, id)
	if err := action(ctx); err != nil {
		// validation errors are shown inline by the caller
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			c.notifier.Notify(ctx, notices.Failure(id, err))
			c.logg.Error(ctx, "order action failed", err)
		}
		return err
	}
	if success != "" {
		c.notifier.Notify(ctx, notices.Notice{Level: notices.LevelSuccess, Message: success, OrderID: id})
	}
	c.RefreshAfterMutation(ctx)
	return nil
}

// RefreshAfterMutation reloads the page and the status counts after a write.
// Failures are logged and reported as a warning notice.
func (c *Coordinator) RefreshAfterMutation(ctx context.Context) {
	if _, err := c.Reload(ctx); err != nil {
		c.logg.Error(ctx, "reload after mutation failed", err)
		c.notifier.Notify(ctx, notices.Notice{Level: notices.LevelWarning, Message: "Saved, but the list could not be refreshed"})
	}
	if err := c.RefreshStatusCounts(ctx); err != nil {
		c.logg.Error(ctx, "status count refresh failed", err)
	}
}

// ApplyRemoteUpdate merges a pushed change into the working set. It reports
// whether the view was affected.
func (c *Coordinator) ApplyRemoteUpdate(ctx context.Context, patch orders.OrderPatch) bool {
	if patch.ID == "" && patch.OrderNumber == "" {
		return false
	}

	c.mu.Lock()
	filter := c.filter
	var idx int
	if patch.ID != "" {
		idx = c.indexOf(patch.ID)
	} else if idx = c.indexOfNumber(patch.OrderNumber); idx >= 0 {
		patch.ID = c.orders[idx].ID
	}

	if idx < 0 {
		c.mu.Unlock()
		if patch.Kind != orders.PatchCreated {
			return false
		}
		c.counts.Trigger()
		if o, ok := patch.AsOrder(); ok && filter.Admits(o) {
			c.refetch.Trigger()
			return true
		}
		return false
	}

	if patch.Kind == orders.PatchRemoved {
		c.mu.Unlock()
		c.refetch.Trigger()
		c.counts.Trigger()
		return true
	}

	next, changed := c.orders[idx].Apply(patch)
	if !changed {
		c.mu.Unlock()
		return false
	}
	c.orders[idx] = next
	leftTab := !filter.EffectiveTab().Admits(next.Status)
	c.mu.Unlock()

	c.logg.Debug(c.logg.WithOrderID(ctx, patch.ID), "live update merged")
	if leftTab {
		c.refetch.Trigger()
	}
	c.counts.Trigger()
	return true
}

// Snapshot returns a deep copy of the view.
func (c *Coordinator) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := make([]orders.Order, len(c.orders))
	for i, o := range c.orders {
		list[i] = o.Clone()
	}
	counts := make(map[enums.StatusTab]int, len(c.statusCounts))
	for k, v := range c.statusCounts {
		counts[k] = v
	}
	updating := make([]string, 0, len(c.updating))
	for id := range c.updating {
		updating = append(updating, id)
	}

	f := ViewFilter{
		Tab:       c.filter.EffectiveTab(),
		Search:    c.filter.Search,
		StartDate: orders.FormatDate(c.filter.StartDate),
		EndDate:   orders.FormatDate(c.filter.EndDate),
	}
	return View{
		Orders:       list,
		Pagination:   c.pagination,
		StatusCounts: counts,
		Filter:       f,
		Page:         c.page,
		Limit:        c.limit,
		Loading:      c.loading,
		Updating:     updating,
	}
}

// ActiveFilter returns the filter the visible orders were loaded with.
func (c *Coordinator) ActiveFilter() orders.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Close stops the background refresh windows.
func (c *Coordinator) Close() {
	c.refetch.Stop()
	c.counts.Stop()
}

func (c *Coordinator) refetchActive(ctx context.Context) {
	if _, err := c.Reload(ctx); err != nil {
		c.logg.Error(ctx, "coalesced order refresh failed", err)
	}
}

func (c *Coordinator) refreshCountsQuietly(ctx context.Context) {
	if err := c.RefreshStatusCounts(ctx); err != nil {
		c.logg.Error(ctx, "coalesced status count refresh failed", err)
	}
}

func (c *Coordinator) lockRow(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.updating[id]; busy {
		return false
	}
	c.updating[id] = struct{}{}
	return true
}

func (c *Coordinator) unlockRow(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.updating, id)
}

func (c *Coordinator) indexOf(id string) int {
	for i := range c.orders {
		if c.orders[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Coordinator) indexOfNumber(number string) int {
	for i := range c.orders {
		if c.orders[i].OrderNumber == number {
			return i
		}
	}
	return -1
}

func displayNumber(o orders.Order) string {
	if n := o.ShortNumber(); n != "" {
		return n
	}
	return o.ID
}
