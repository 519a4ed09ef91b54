package mempool

// stack is a LIFO worklist.  The zero value is ready to use.
type stack[T any] struct {
	items []T
}

// newStack returns a stack seeded with items.  The passed slice is copied.
func newStack[T any](items ...T) *stack[T] {
	s := &stack[T]{items: make([]T, 0, len(items))}
	s.items = append(s.items, items...)
	return s
}

// Push adds items to the top of the stack in order, so the last one is popped
// first.
func (s *stack[T]) Push(items ...T) {
	s.items = append(s.items, items...)
}

// Pop removes and returns the item at the top of the stack.  Returns false if
// the stack is empty.
func (s *stack[T]) Pop() (T, bool) {
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	idx := len(s.items) - 1
	item := s.items[idx]
	s.items = s.items[:idx]
	return item, true
}

// Len returns the number of items in the stack.
func (s *stack[T]) Len() int {
	return len(s.items)
}

// queue is a FIFO worklist with amortized O(1) operations.  The zero value is
// ready to use.
type queue[T any] struct {
	items []T
	head  int
}

// newQueue returns a queue holding items in order.
func newQueue[T any](items ...T) *queue[T] {
	q := &queue[T]{items: make([]T, 0, len(items))}
	q.items = append(q.items, items...)
	return q
}

// Enqueue adds items to the back of the queue.
func (q *queue[T]) Enqueue(items ...T) {
	q.items = append(q.items, items...)
}

// Dequeue removes and returns the item at the front of the queue.  Returns
// false if the queue is empty.
func (q *queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.head == len(q.items) {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 32 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item, true
}

// Len returns the number of items in the queue.
func (q *queue[T]) Len() int {
	return len(q.items) - q.head
}
