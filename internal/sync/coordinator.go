package sync

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/remote"
	"github.com/sp24/pos/internal/repo"
)

// State is the coordinator lifecycle phase.
type State int

const (
	StateBootstrapping State = iota
	StateLive
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of the sync engine for display.
type Status struct {
	State      State
	LastSync   time.Time
	LastError  string
	PendingOps int
	// PendingByCollection breaks the queued backlog down per collection.
	PendingByCollection map[string]int
}

// CoordinatorConfig tunes the coordinator. Zero values fall back to
// production defaults.
type CoordinatorConfig struct {
	// SalesWindow is the number of most recent sales kept live locally.
	SalesWindow int
	// AutosaveInterval is the cadence of the safety-net local persist.
	AutosaveInterval time.Duration
	// RetryBase is the initial backoff for bootstrap and resubscribe
	// attempts; it doubles up to RetryCap.
	RetryBase time.Duration
	RetryCap  time.Duration
}

const (
	defaultSalesWindow      = 100
	defaultAutosaveInterval = 30 * time.Second
	defaultRetryBase        = time.Second
	defaultRetryCap         = 30 * time.Second
)

func (c CoordinatorConfig) withDefaults() CoordinatorConfig {
	if c.SalesWindow <= 0 {
		c.SalesWindow = defaultSalesWindow
	}
	if c.AutosaveInterval <= 0 {
		c.AutosaveInterval = defaultAutosaveInterval
	}
	if c.RetryBase <= 0 {
		c.RetryBase = defaultRetryBase
	}
	if c.RetryCap <= 0 {
		c.RetryCap = defaultRetryCap
	}
	return c
}

// Coordinator drives a tenant's sync lifecycle: the bootstrap pull, the
// live change feeds with reconnection, and the periodic autosave. The
// local snapshot is always usable; every remote failure degrades rather
// than blocks.
type Coordinator struct {
	store   *repo.Store
	queue   *Queue
	recon   *Reconciler
	backend remote.Store
	cfg     CoordinatorConfig
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	lastSync time.Time
	lastErr  error
}

// NewCoordinator wires a coordinator over an already-constructed store,
// queue and reconciler.
func NewCoordinator(store *repo.Store, queue *Queue, recon *Reconciler, backend remote.Store, cfg CoordinatorConfig, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		queue:   queue,
		recon:   recon,
		backend: backend,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		state:   StateBootstrapping,
	}
}

// Status reports the current engine state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:    c.state,
		LastSync: c.lastSync,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if c.queue != nil {
		st.PendingOps = c.queue.Pending()
		st.PendingByCollection = c.queue.PendingByCollection()
	}
	return st
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) noteSync() {
	c.mu.Lock()
	c.lastSync = time.Now()
	c.lastErr = nil
	c.mu.Unlock()
}

func (c *Coordinator) noteError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Start performs the bootstrap pull and launches the live feeds and the
// autosave loop. It returns once the engine is live; a failed bootstrap
// is not fatal, the session continues on the local snapshot.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	if err := c.bootstrap(ctx); err != nil {
		c.logger.Warn("bootstrap failed, continuing on local snapshot", "error", err)
		c.noteError(err)
	} else {
		c.noteSync()
	}
	c.setState(StateLive)

	c.runFeed(ctx, models.CollectionProducts, c.recon.HandleProductEvent)
	c.runFeed(ctx, models.CollectionCategories, c.recon.HandleCategoryEvent)
	c.runFeed(ctx, models.CollectionMembers, c.recon.HandleMemberEvent)
	c.runFeed(ctx, models.CollectionSettings, c.recon.HandleSettingsEvent)
	c.runSalesFeed(ctx)

	c.wg.Add(1)
	go c.autosaveLoop(ctx)
}

// Stop tears the engine down. After Stop returns no feed handler runs
// and no autosave fires. The outbound queue is owned by the session and
// is closed there.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.setState(StateStopped)
}

// retryBackoff builds the shared backoff policy for remote attempts.
func (c *Coordinator) retryBackoff() retry.Backoff {
	b := retry.NewExponential(c.cfg.RetryBase)
	b = retry.WithCappedDuration(c.cfg.RetryCap, b)
	return b
}

// bootstrap pulls the full remote state, replaces the local snapshot
// with it, and seeds the default categories when the remote store is
// brand new.
func (c *Coordinator) bootstrap(ctx context.Context) error {
	b := retry.WithMaxRetries(3, c.retryBackoff())
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.pullAll(ctx)
		if errors.Is(err, remote.ErrRateLimited) || errors.Is(err, remote.ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Coordinator) pullAll(ctx context.Context) error {
	snap := &models.Snapshot{Settings: c.store.Settings()}

	if err := c.pullSettings(ctx, snap); err != nil {
		return err
	}

	catDocs, err := c.backend.Query(ctx, models.CollectionCategories, remote.Query{})
	if err != nil {
		return err
	}
	for _, doc := range catDocs {
		var cat models.Category
		if err := doc.Decode(&cat); err != nil {
			c.logger.Warn("skipping undecodable category", "doc_id", doc.ID, "error", err)
			continue
		}
		snap.Categories = append(snap.Categories, cat)
	}

	prodDocs, err := c.backend.Query(ctx, models.CollectionProducts, remote.Query{})
	if err != nil {
		return err
	}
	for _, doc := range prodDocs {
		var p models.Product
		if err := doc.Decode(&p); err != nil {
			c.logger.Warn("skipping undecodable product", "doc_id", doc.ID, "error", err)
			continue
		}
		if c.recon.Denied(p.Name) {
			continue
		}
		snap.Products = append(snap.Products, p)
	}

	memDocs, err := c.backend.Query(ctx, models.CollectionMembers, remote.Query{})
	if err != nil {
		return err
	}
	for _, doc := range memDocs {
		var m models.Member
		if err := doc.Decode(&m); err != nil {
			c.logger.Warn("skipping undecodable member", "doc_id", doc.ID, "error", err)
			continue
		}
		snap.Members = append(snap.Members, m)
	}

	saleDocs, err := c.backend.Query(ctx, models.CollectionSales, remote.Query{
		OrderBy: "timestamp",
		Desc:    true,
		Limit:   c.cfg.SalesWindow,
	})
	if err != nil {
		return err
	}
	// The query returns newest first; the local view keeps oldest first.
	for i := len(saleDocs) - 1; i >= 0; i-- {
		var sale models.Sale
		if err := saleDocs[i].Decode(&sale); err != nil {
			c.logger.Warn("skipping undecodable sale", "doc_id", saleDocs[i].ID, "error", err)
			continue
		}
		snap.Sales = append(snap.Sales, sale)
	}

	if len(catDocs) == 0 {
		c.seedCategories(ctx, snap)
	}

	c.store.ResetFromSnapshot(ctx, snap)
	return nil
}

func (c *Coordinator) pullSettings(ctx context.Context, snap *models.Snapshot) error {
	doc, err := c.backend.Get(ctx, models.CollectionSettings, models.SettingsDocID)
	if errors.Is(err, remote.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var sd SettingsDoc
	if err := doc.Decode(&sd); err != nil {
		c.logger.Warn("ignoring undecodable settings document", "error", err)
		return nil
	}
	settings := sd.Settings
	if sd.Name != "" {
		settings.StoreName = sd.Name
		settings.StoreAddress = sd.Address
		settings.StorePhone = sd.Phone
	}
	snap.Settings.MergeRemote(settings)
	return nil
}

// seedCategories pushes the default category set to an empty remote
// store so every device of the tenant starts from the same taxonomy.
func (c *Coordinator) seedCategories(ctx context.Context, snap *models.Snapshot) {
	defaults := models.DefaultCategories()
	writes := make([]remote.Write, 0, len(defaults))
	for _, cat := range defaults {
		writes = append(writes, remote.Write{
			Kind:       remote.WriteSet,
			Collection: models.CollectionCategories,
			ID:         docIDString(cat.ID),
			Doc:        cat,
		})
	}
	if err := c.backend.BatchCommit(ctx, writes); err != nil {
		c.logger.Warn("failed to seed default categories", "error", err)
	}
	snap.Categories = append(snap.Categories, defaults...)
}

// runFeed subscribes to one collection's change feed and applies every
// event through the handler, resubscribing with backoff whenever the
// feed drops.
func (c *Coordinator) runFeed(ctx context.Context, collection string, handle func(context.Context, remote.Event)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			sub, err := c.subscribe(ctx, collection)
			if err != nil {
				return
			}
			c.consumeFeed(ctx, collection, sub, handle)
			if ctx.Err() != nil {
				return
			}
			c.setState(StateReconnecting)
		}
	}()
}

func (c *Coordinator) subscribe(ctx context.Context, collection string) (remote.Subscription, error) {
	var sub remote.Subscription
	err := retry.Do(ctx, c.retryBackoff(), func(ctx context.Context) error {
		var err error
		sub, err = c.backend.Subscribe(ctx, collection)
		if err != nil {
			c.logger.Warn("subscribe failed, retrying", "collection", collection, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Coordinator) consumeFeed(ctx context.Context, collection string, sub remote.Subscription, handle func(context.Context, remote.Event)) {
	defer sub.Unsubscribe()
	c.setState(StateLive)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				if err := sub.Err(); err != nil {
					c.logger.Warn("change feed dropped", "collection", collection, "error", err)
					c.noteError(err)
				}
				return
			}
			handle(ctx, ev)
			c.noteSync()
		}
	}
}

// runSalesFeed maintains the windowed recent-sales feed. Each delivery
// replaces the local recent-sales view wholesale.
func (c *Coordinator) runSalesFeed(ctx context.Context) {
	q := remote.Query{OrderBy: "timestamp", Desc: true, Limit: c.cfg.SalesWindow}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			var sub remote.QuerySubscription
			err := retry.Do(ctx, c.retryBackoff(), func(ctx context.Context) error {
				var err error
				sub, err = c.backend.SubscribeQuery(ctx, models.CollectionSales, q)
				if err != nil {
					c.logger.Warn("sales feed subscribe failed, retrying", "error", err)
					return retry.RetryableError(err)
				}
				return nil
			})
			if err != nil {
				return
			}
			c.consumeSalesFeed(ctx, sub)
			if ctx.Err() != nil {
				return
			}
			c.setState(StateReconnecting)
		}
	}()
}

func (c *Coordinator) consumeSalesFeed(ctx context.Context, sub remote.QuerySubscription) {
	defer sub.Unsubscribe()
	c.setState(StateLive)
	for {
		select {
		case <-ctx.Done():
			return
		case docs, ok := <-sub.Snapshots():
			if !ok {
				if err := sub.Err(); err != nil {
					c.logger.Warn("sales feed dropped", "error", err)
					c.noteError(err)
				}
				return
			}
			c.recon.HandleSalesSnapshot(ctx, docs)
			c.noteSync()
		}
	}
}

func docIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (c *Coordinator) autosaveLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.AutosaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.store.Persist(ctx)
		}
	}
}
