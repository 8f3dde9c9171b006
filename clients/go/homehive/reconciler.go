package homehive

import (
	"sort"
	"sync"
)

// Reconciler maintains a single ordered, de-duplicated view of one room's
// messages, no matter which path they arrive by: history fetch, live channel
// push, or the facade's synchronous send response. The message id is the only
// ordering and deduplication key; arrival order is never trusted.
type Reconciler struct {
	mu   sync.Mutex
	byID map[int64]Message
}

func NewReconciler() *Reconciler {
	return &Reconciler{byID: make(map[int64]Message)}
}

// Bootstrap replaces the whole view with a freshly fetched history. A full
// re-fetch is always a correct repair action.
func (r *Reconciler) Bootstrap(history []Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[int64]Message, len(history))
	for _, m := range history {
		r.byID[m.ID] = m
	}
}

// Upsert inserts a message, or updates it when the id is already present.
func (r *Reconciler) Upsert(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID] = m
}

// Remove drops a message from the view. Removing an unknown id is a no-op.
func (r *Reconciler) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// Apply folds one live channel frame into the view.
func (r *Reconciler) Apply(f Frame) {
	switch f.Type {
	case FrameMessage, FrameMessageEdited:
		if f.Message != nil {
			r.Upsert(*f.Message)
		}
	case FrameMessageDeleted:
		r.Remove(f.MessageID)
	}
}

// Messages returns the current view in strictly increasing id order.
func (r *Reconciler) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, 0, len(r.byID))
	for _, m := range r.byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports how many messages are in the view.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
