package session

// queue is the per-session FIFO of fetched tracks. Callers hold the session
// mutex; the queue itself does no locking.
type queue struct {
	items []*Track
}

func (q *queue) push(t *Track) {
	q.items = append(q.items, t)
}

func (q *queue) popFront() (*Track, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t, true
}

func (q *queue) len() int { return len(q.items) }

// drain empties the queue and returns everything that was in it.
func (q *queue) drain() []*Track {
	out := q.items
	q.items = nil
	return out
}

// page returns a copy of one page of the queue plus the total number of
// queued tracks. Pages are 1-based.
func (q *queue) page(page, pageSize int) ([]*Track, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	total := len(q.items)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]*Track, end-start)
	copy(out, q.items[start:end])
	return out, total
}
