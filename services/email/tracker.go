package emailsvc

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwalefaith2021/jjschool/core"
)

// tracker keeps the outcome of the last `size` deliveries in a ring buffer.
type tracker struct {
	mu    sync.RWMutex
	size  int
	next  int
	full  bool
	items []core.Delivery
	index map[string]int // {delivery ID: slot}
}

var _ core.DeliveryLog = (*tracker)(nil) // interface compliance check

func newTracker(size int) *tracker {
	if size <= 0 {
		size = 200
	}
	return &tracker{
		size:  size,
		items: make([]core.Delivery, size),
		index: make(map[string]int, size),
	}
}

func (t *tracker) queue(msg *core.EmailMessage) string {
	now := time.Now().UTC()
	d := core.Delivery{
		ID:        uuid.NewString(),
		To:        msg.Recipients(),
		Subject:   msg.Subject,
		Template:  msg.TemplateName,
		Status:    core.DeliveryQueued,
		QueuedAt:  now,
		UpdatedAt: now,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.full {
		delete(t.index, t.items[t.next].ID)
	}
	t.items[t.next] = d
	t.index[d.ID] = t.next
	t.next = (t.next + 1) % t.size
	if t.next == 0 {
		t.full = true
	}
	return d.ID
}

// update is a noop when the delivery was already evicted.
func (t *tracker) update(id, status string, attempts int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, ok := t.index[id]
	if !ok {
		return
	}
	d := &t.items[slot]
	d.Status = status
	d.Attempts = attempts
	d.LastError = ""
	if err != nil {
		d.LastError = err.Error()
	}
	d.UpdatedAt = time.Now().UTC()
}

// Deliveries returns up to `limit` deliveries, newest first. limit <= 0 returns them all.
func (t *tracker) Deliveries(limit int) []core.Delivery {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.next
	if t.full {
		n = t.size
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]core.Delivery, 0, limit)
	for i := 1; i <= limit; i++ {
		slot := (t.next - i + t.size) % t.size
		d := t.items[slot]
		d.To = append([]string(nil), d.To...)
		out = append(out, d)
	}
	return out
}
