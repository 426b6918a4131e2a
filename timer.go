package httpd

import (
	"container/heap"
	"time"

	"github.com/gotcp/httpd/internal/logger"
)

// TimerID is a handle to a timer of a TimerList. The zero value is never valid,
// and a handle goes stale once its timer is removed or expires.
type TimerID struct {
	index int32
	gen   uint32
}

type timerSlot struct {
	expire time.Time
	owner  int
	gen    uint32
	pos    int // index in the heap, -1 when the slot is free
}

// TimerList orders connection expiry timers by absolute deadline.
// It is not safe for concurrent use; the reactor goroutine owns it.
type TimerList struct {
	slots []timerSlot
	free  []int32
	order timerHeap
}

func NewTimerList(capacity int) *TimerList {
	var tl = &TimerList{
		slots: make([]timerSlot, 0, capacity),
	}
	tl.order = timerHeap{list: tl, idx: make([]int32, 0, capacity)}
	return tl
}

// Add inserts a timer firing at expire on behalf of owner.
func (tl *TimerList) Add(owner int, expire time.Time) TimerID {
	var index int32
	if n := len(tl.free); n > 0 {
		index = tl.free[n-1]
		tl.free = tl.free[:n-1]
	} else {
		tl.slots = append(tl.slots, timerSlot{gen: 0, pos: -1})
		index = int32(len(tl.slots) - 1)
	}
	var slot = &tl.slots[index]
	slot.gen++
	slot.expire = expire
	slot.owner = owner
	heap.Push(&tl.order, index)
	return TimerID{index: index, gen: slot.gen}
}

// Adjust moves a timer to a new deadline.
func (tl *TimerList) Adjust(id TimerID, expire time.Time) bool {
	var slot = tl.lookup(id)
	if slot == nil {
		logger.Debug("adjust on stale timer %d/%d", id.index, id.gen)
		return false
	}
	slot.expire = expire
	heap.Fix(&tl.order, slot.pos)
	return true
}

func (tl *TimerList) Remove(id TimerID) bool {
	var slot = tl.lookup(id)
	if slot == nil {
		logger.Debug("remove on stale timer %d/%d", id.index, id.gen)
		return false
	}
	heap.Remove(&tl.order, slot.pos)
	tl.release(id.index)
	return true
}

// Expire reports the deadline and owner of a live timer.
func (tl *TimerList) Expire(id TimerID) (owner int, expire time.Time, ok bool) {
	var slot = tl.lookup(id)
	if slot == nil {
		return 0, time.Time{}, false
	}
	return slot.owner, slot.expire, true
}

func (tl *TimerList) Len() int {
	return tl.order.Len()
}

// Peek returns the earliest timer without removing it.
func (tl *TimerList) Peek() (TimerID, time.Time, bool) {
	if tl.order.Len() == 0 {
		return TimerID{}, time.Time{}, false
	}
	var index = tl.order.idx[0]
	var slot = &tl.slots[index]
	return TimerID{index: index, gen: slot.gen}, slot.expire, true
}

// Tick hands every timer whose deadline is not after now to expired, earliest
// first, and stops at the first timer still pending. When expired returns a
// deadline after now with keep set, the timer is rescheduled; otherwise it is
// removed, unless expired already removed it. Tick returns the number of
// timers removed.
func (tl *TimerList) Tick(now time.Time, expired func(owner int) (time.Time, bool)) int {
	var removed int
	for tl.order.Len() > 0 {
		var id, expire, _ = tl.Peek()
		if expire.After(now) {
			break
		}
		var next, keep = expired(tl.slots[id.index].owner)
		var slot = tl.lookup(id)
		if slot == nil {
			removed++
			continue
		}
		if keep && next.After(now) {
			slot.expire = next
			heap.Fix(&tl.order, slot.pos)
			continue
		}
		heap.Remove(&tl.order, slot.pos)
		tl.release(id.index)
		removed++
	}
	return removed
}

func (tl *TimerList) lookup(id TimerID) *timerSlot {
	if id.index < 0 || int(id.index) >= len(tl.slots) {
		return nil
	}
	var slot = &tl.slots[id.index]
	if slot.gen != id.gen || slot.pos < 0 {
		return nil
	}
	return slot
}

func (tl *TimerList) release(index int32) {
	var slot = &tl.slots[index]
	slot.gen++
	slot.pos = -1
	slot.owner = -1
	tl.free = append(tl.free, index)
}

// timerHeap is a min-heap of slot indices keyed by deadline.
type timerHeap struct {
	list *TimerList
	idx  []int32
}

func (h *timerHeap) Len() int { return len(h.idx) }

func (h *timerHeap) Less(i, j int) bool {
	return h.list.slots[h.idx[i]].expire.Before(h.list.slots[h.idx[j]].expire)
}

func (h *timerHeap) Swap(i, j int) {
	h.idx[i], h.idx[j] = h.idx[j], h.idx[i]
	h.list.slots[h.idx[i]].pos = i
	h.list.slots[h.idx[j]].pos = j
}

func (h *timerHeap) Push(x any) {
	var index = x.(int32)
	h.list.slots[index].pos = len(h.idx)
	h.idx = append(h.idx, index)
}

func (h *timerHeap) Pop() any {
	var n = len(h.idx)
	var index = h.idx[n-1]
	h.idx = h.idx[:n-1]
	h.list.slots[index].pos = -1
	return index
}
