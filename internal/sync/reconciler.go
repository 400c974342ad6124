package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/remote"
	"github.com/sp24/pos/internal/repo"
)

// DefaultDenylist names the seed/sample records that must never
// materialize in a tenant's working set, even when still present
// remotely.
var DefaultDenylist = []string{
	"Iced Americano",
	"Hot Americano",
	"Cappuccino",
}

// SettingsDoc is the wire form of the tenant settings document: the
// store identity fields live beside the settings payload.
type SettingsDoc struct {
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	Phone       string          `json:"phone"`
	Settings    models.Settings `json:"settings"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Reconciler converts remote change notifications into repository
// mutations. All merges are idempotent; events are applied strictly in
// delivery order per collection.
type Reconciler struct {
	store    *repo.Store
	denylist map[string]struct{}
	logger   *slog.Logger
}

// NewReconciler creates a reconciler over the tenant's repositories.
func NewReconciler(store *repo.Store, denylist []string, logger *slog.Logger) *Reconciler {
	deny := make(map[string]struct{}, len(denylist))
	for _, name := range denylist {
		deny[name] = struct{}{}
	}
	return &Reconciler{store: store, denylist: deny, logger: logger}
}

// Denied reports whether a record name is on the sample denylist.
func (r *Reconciler) Denied(name string) bool {
	_, ok := r.denylist[name]
	return ok
}

// HandleProductEvent merges one products change-feed event.
func (r *Reconciler) HandleProductEvent(ctx context.Context, ev remote.Event) {
	var product models.Product
	if err := ev.Doc.Decode(&product); err != nil {
		r.logger.Warn("skipping undecodable product event", "doc_id", ev.Doc.ID, "error", err)
		return
	}
	if r.Denied(product.Name) {
		return
	}
	r.store.Products().ApplyChange(ctx, ev.Type, product)
}

// HandleCategoryEvent merges one categories change-feed event.
func (r *Reconciler) HandleCategoryEvent(ctx context.Context, ev remote.Event) {
	var category models.Category
	if err := ev.Doc.Decode(&category); err != nil {
		r.logger.Warn("skipping undecodable category event", "doc_id", ev.Doc.ID, "error", err)
		return
	}
	r.store.Categories().ApplyChange(ctx, ev.Type, category)
}

// HandleMemberEvent merges one members change-feed event.
func (r *Reconciler) HandleMemberEvent(ctx context.Context, ev remote.Event) {
	var member models.Member
	if err := ev.Doc.Decode(&member); err != nil {
		r.logger.Warn("skipping undecodable member event", "doc_id", ev.Doc.ID, "error", err)
		return
	}
	r.store.Members().ApplyChange(ctx, ev.Type, member)
}

// HandleSalesSnapshot replaces the local view of recent sales with the
// delivered window. The window's membership shifts as new sales push
// old ones out, so this is a full replacement, not a merge.
func (r *Reconciler) HandleSalesSnapshot(ctx context.Context, docs []remote.Document) {
	sales := make([]models.Sale, 0, len(docs))
	for _, doc := range docs {
		var sale models.Sale
		if err := doc.Decode(&sale); err != nil {
			r.logger.Warn("skipping undecodable sale", "doc_id", doc.ID, "error", err)
			continue
		}
		sales = append(sales, sale)
	}
	r.store.Sales().ReplaceRecent(ctx, sales)
}

// HandleSettingsEvent merges a remote update of the tenant settings
// document. Removal events are ignored: settings always exist locally.
func (r *Reconciler) HandleSettingsEvent(ctx context.Context, ev remote.Event) {
	if ev.Doc.ID != models.SettingsDocID || ev.Type == remote.EventRemoved {
		return
	}

	var doc SettingsDoc
	if err := ev.Doc.Decode(&doc); err != nil {
		r.logger.Warn("skipping undecodable settings event", "error", err)
		return
	}

	settings := doc.Settings
	if doc.Name != "" {
		settings.StoreName = doc.Name
		settings.StoreAddress = doc.Address
		settings.StorePhone = doc.Phone
	}
	r.store.ApplyRemoteSettings(ctx, settings)
}
