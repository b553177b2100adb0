package pool

// waitQueue is the FIFO of not-yet-started requests. Links are embedded
// in Request so removal by identity is O(1), which is what makes
// cancel-before-pickup cheap. Not locked itself: every call site holds
// the pool mutex, the single lock that also serializes state
// transitions against Cancel.
type waitQueue struct {
	head, tail *Request
	size       int
}

func (q *waitQueue) push(r *Request) {
	r.prev = q.tail
	r.next = nil
	if q.tail != nil {
		q.tail.next = r
	} else {
		q.head = r
	}
	q.tail = r
	q.size++
}

// pop removes and returns the head, or nil when empty.
func (q *waitQueue) pop() *Request {
	r := q.head
	if r == nil {
		return nil
	}
	q.remove(r)
	return r
}

// remove unlinks r. The caller must know r is a member; state
// StateQueued is equivalent to membership.
func (q *waitQueue) remove(r *Request) {
	if r.prev != nil {
		r.prev.next = r.next
	} else {
		q.head = r.next
	}
	if r.next != nil {
		r.next.prev = r.prev
	} else {
		q.tail = r.prev
	}
	r.prev = nil
	r.next = nil
	q.size--
}
