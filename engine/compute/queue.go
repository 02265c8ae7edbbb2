package compute

import (
	"fmt"
	"sync"
)

// Queue is a command queue bound to one context and one device. Work enqueued on it is
// drained before it is released.
type Queue struct {
	ctx    *Context
	device *Device
	driver queueDriver
	label  string

	mu       sync.Mutex
	released bool
}

// Label returns the queue's diagnostic label.
func (q *Queue) Label() string { return q.label }

// Device returns the device the queue is scoped to.
func (q *Queue) Device() *Device { return q.device }

// Context returns the context the queue belongs to.
func (q *Queue) Context() *Context { return q.ctx }

// Flush submits all work enqueued on the queue without waiting for it to complete.
func (q *Queue) Flush() error {
	if q.isReleased() {
		return ErrReleased
	}
	if err := q.driver.flush(); err != nil {
		return fmt.Errorf("compute: flush %s: %w", q.label, err)
	}
	return nil
}

// Finish blocks until all work enqueued on the queue has completed.
func (q *Queue) Finish() error {
	if q.isReleased() {
		return ErrReleased
	}
	if err := q.driver.finish(); err != nil {
		return fmt.Errorf("compute: finish %s: %w", q.label, err)
	}
	return nil
}

// Release drains the queue with Flush and Finish, then releases it. Releasing twice is a no-op.
//
// Returns:
//   - error: the drain error, if any; the queue is released regardless
func (q *Queue) Release() error {
	if q.isReleased() {
		return nil
	}
	err := q.Flush()
	if err == nil {
		err = q.Finish()
	}

	q.mu.Lock()
	q.released = true
	q.mu.Unlock()

	q.driver.release()
	q.ctx.platform.forgetQueue(q)
	q.ctx.platform.registry.released(ObjectQueue, q.label)
	return err
}

func (q *Queue) isReleased() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.released
}

// checkPlatform fails with ErrForeignDevice when q does not belong to p.
func (q *Queue) checkPlatform(p *Platform) error {
	if q == nil {
		return fmt.Errorf("%w: nil queue", ErrForeignDevice)
	}
	if q.ctx.platform != p {
		return fmt.Errorf("%w: queue %s", ErrForeignDevice, q.label)
	}
	if q.isReleased() {
		return ErrReleased
	}
	return nil
}
