package repo

// Outbox receives the remote writes a local mutation produces. The
// repository never talks to the remote store directly: local success is
// independent of remote delivery, so enqueueing cannot fail.
type Outbox interface {
	// EnqueueSet schedules a create/overwrite (or field merge) of one
	// remote document.
	EnqueueSet(collection, id string, doc any, merge bool)

	// EnqueueDelete schedules deletion of one remote document.
	EnqueueDelete(collection, id string)

	// ScheduleSettingsSync requests a debounced write of the tenant
	// settings document. Repeated calls within the window collapse into
	// one write carrying the latest state.
	ScheduleSettingsSync()
}

// discardOutbox drops everything. Used when a session runs fully
// offline and remote delivery is disabled.
type discardOutbox struct{}

func (discardOutbox) EnqueueSet(string, string, any, bool) {}
func (discardOutbox) EnqueueDelete(string, string)         {}
func (discardOutbox) ScheduleSettingsSync()                {}

// DiscardOutbox returns an Outbox that drops all writes.
func DiscardOutbox() Outbox { return discardOutbox{} }
