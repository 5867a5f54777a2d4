package sound

import (
	"github.com/trainsim/soundsource/internal/asset"
)

// QueueCapacity is the number of command slots per source.
const QueueCapacity = 16

// DefaultLongOneShot is the asset length in bytes above which a one-shot
// survives a hard clean.
const DefaultLongOneShot = 50000

// CommandQueue is a fixed ring of commands. head and tail only grow; the slot
// for a cursor is cursor % QueueCapacity. Slots outside [tail, head) are NOP.
type CommandQueue struct {
	slots [QueueCapacity]Command
	head  uint64
	tail  uint64
}

// Len returns the number of slots between tail and head, NOP ones included.
func (q *CommandQueue) Len() int { return int(q.head - q.tail) }

// Empty reports whether the queue holds no slots.
func (q *CommandQueue) Empty() bool { return q.head == q.tail }

// Full reports whether another Push would overwrite a live slot.
func (q *CommandQueue) Full() bool { return q.Len() >= QueueCapacity }

func (q *CommandQueue) slot(pos uint64) *Command {
	return &q.slots[pos%QueueCapacity]
}

// Tail returns the oldest slot. On an empty queue it is a NOP slot.
func (q *CommandQueue) Tail() *Command { return q.slot(q.tail) }

// Next returns the first non-NOP slot behind the tail, or nil.
func (q *CommandQueue) Next() *Command {
	for pos := q.tail + 1; pos < q.head; pos++ {
		if c := q.slot(pos); c.State != NOP {
			return c
		}
	}
	return nil
}

// Last returns the most recently pushed slot, or nil when empty.
func (q *CommandQueue) Last() *Command {
	if q.Empty() {
		return nil
	}
	return q.slot(q.head - 1)
}

// SkipNOP advances the tail past finished slots.
func (q *CommandQueue) SkipNOP() {
	for q.tail < q.head && q.slot(q.tail).State == NOP {
		*q.slot(q.tail) = Command{}
		q.tail++
	}
}

// Merge tries to fold a request into the last slot. It returns true when the
// request was absorbed and must not be pushed.
func (q *CommandQueue) Merge(name string, mode PlayMode) bool {
	last := q.Last()
	if last == nil || last.State == NOP {
		return false
	}
	same := last.Name() == name

	if same && last.Mode == mode {
		if last.State == New || (last.State == Playing && mode.IsLoop()) {
			return true
		}
	}
	if last.State != New {
		return false
	}
	merged, ok := collapse(last.Mode, mode, same)
	if !ok {
		return false
	}
	logger.Debug("collapsed command", "name", name, "from", last.Mode, "request", mode, "to", merged)
	last.Mode = merged
	return true
}

// Push appends a New command. It returns false when the ring is full.
func (q *CommandQueue) Push(a *asset.Asset, mode PlayMode) bool {
	if q.Full() {
		return false
	}
	*q.slot(q.head) = Command{Asset: a, Mode: effectiveMode(a, mode), State: New}
	q.head++
	return true
}

// Reset replaces the whole queue with one pending command in slot 0.
func (q *CommandQueue) Reset(a *asset.Asset, mode PlayMode) {
	q.Clear()
	q.slots[0] = Command{Asset: a, Mode: effectiveMode(a, mode), State: New}
	q.head = 1
}

// Clear empties the queue.
func (q *CommandQueue) Clear() {
	for i := range q.slots {
		q.slots[i] = Command{}
	}
	q.head, q.tail = 0, 0
}

// HardClean keeps at most one command: the most recent loop, or a one-shot
// longer than longOneShot bytes, that is still New or Playing. A release met
// first on the way back from head means nothing survives. With restart the
// survivor is set back to New so it starts over on the next voice.
func (q *CommandQueue) HardClean(restart bool, longOneShot int) {
	var (
		keep  Command
		at    uint64
		found bool
	)
	for pos := q.head; pos > q.tail; pos-- {
		c := q.slot(pos - 1)
		if c.State == NOP {
			continue
		}
		if c.Mode.IsRelease() {
			break
		}
		if c.State != New && c.State != Playing {
			continue
		}
		long := c.Mode == OneShot && c.Asset != nil && c.Asset.Length() > longOneShot
		if c.Mode.IsLoop() || long {
			keep, at, found = *c, pos-1, true
			break
		}
	}

	dropped := q.Len()
	q.Clear()
	if !found {
		logger.Debug("hard clean emptied queue", "dropped", dropped)
		return
	}
	if restart {
		keep.State = New
		keep.checkpoint = false
	}
	*q.slot(at) = keep
	q.tail, q.head = at, at+1
	logger.Debug("hard clean kept command", "name", keep.Name(), "mode", keep.Mode, "dropped", dropped-1)
}

// Commands returns a copy of the live slots from tail to head.
func (q *CommandQueue) Commands() []Command {
	out := make([]Command, 0, q.Len())
	for pos := q.tail; pos < q.head; pos++ {
		out = append(out, *q.slot(pos))
	}
	return out
}

// effectiveMode stores LoopRelease on a single-segment asset as Loop, since
// there is no middle segment to repeat.
func effectiveMode(a *asset.Asset, mode PlayMode) PlayMode {
	if mode == LoopRelease && a != nil && a.Valid() && a.Single() {
		return Loop
	}
	return mode
}
