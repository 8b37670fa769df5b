package wire

import (
	"container/list"
	"sync"

	"github.com/lanplay/slpd/internal/metrics"
)

// DefaultReassemblerCapacity is the default bound on in-flight fragment
// groups, per the fixed-size LRU the relay dataplane is specified to use.
const DefaultReassemblerCapacity = 50

type fragGroupKey struct {
	src    [4]byte
	fragID uint16
}

type fragSlot struct {
	have   bool
	pmtu   uint16
	length uint16
	data   []byte
}

type fragGroup struct {
	key    fragGroupKey
	slots  []fragSlot
	filled int
	elem   *list.Element
}

// Reassembler reassembles Ipv4Frag parts into complete IPv4 datagrams. It
// is a bounded LRU of in-flight groups keyed by (source virtual IPv4,
// fragment id); each slot is sized to the group's declared total-parts.
type Reassembler struct {
	mu       sync.Mutex
	capacity int
	groups   map[fragGroupKey]*fragGroup
	order    *list.List // front = most recently touched
}

// NewReassembler creates a Reassembler bounded to capacity groups (0 uses
// DefaultReassemblerCapacity).
func NewReassembler(capacity int) *Reassembler {
	if capacity <= 0 {
		capacity = DefaultReassemblerCapacity
	}
	return &Reassembler{
		capacity: capacity,
		groups:   make(map[fragGroupKey]*fragGroup),
		order:    list.New(),
	}
}

// Add records one fragment part. When the group it belongs to becomes
// complete, Add returns the reassembled payload and true, and the group is
// removed. An out-of-range part index drops the whole group silently.
func (r *Reassembler) Add(src [4]byte, h Ipv4FragHeader, data []byte) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fragGroupKey{src: src, fragID: h.FragID}
	g, ok := r.groups[key]
	if !ok {
		if len(r.groups) >= r.capacity {
			r.evictLRULocked()
		}
		g = &fragGroup{key: key, slots: make([]fragSlot, h.TotalParts)}
		g.elem = r.order.PushFront(g)
		r.groups[key] = g
		metrics.ReassemblyActiveGroups.Inc()
	} else {
		r.order.MoveToFront(g.elem)
	}

	if int(h.PartIndex) >= len(g.slots) {
		r.dropGroupLocked(g, "out_of_range")
		return nil, false
	}

	slot := &g.slots[h.PartIndex]
	if !slot.have {
		g.filled++
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	*slot = fragSlot{have: true, pmtu: h.PMTU, length: uint16(len(data)), data: buf}

	if g.filled < len(g.slots) {
		return nil, false
	}

	total := 0
	for _, s := range g.slots {
		total += int(s.length)
	}
	result := make([]byte, total)
	for i, s := range g.slots {
		start := i * int(s.pmtu)
		end := start + int(s.length)
		if end > len(result) || start < 0 {
			r.dropGroupLocked(g, "overrun")
			return nil, false
		}
		copy(result[start:end], s.data)
	}

	r.removeGroupLocked(g)
	return result, true
}

// ActiveGroups reports the current number of in-flight groups.
func (r *Reassembler) ActiveGroups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}

func (r *Reassembler) evictLRULocked() {
	back := r.order.Back()
	if back == nil {
		return
	}
	r.dropGroupLocked(back.Value.(*fragGroup), "lru_evicted")
}

func (r *Reassembler) dropGroupLocked(g *fragGroup, reason string) {
	r.removeGroupLocked(g)
	metrics.ReassemblyDropsTotal.WithLabelValues(reason).Inc()
}

func (r *Reassembler) removeGroupLocked(g *fragGroup) {
	if _, ok := r.groups[g.key]; !ok {
		return
	}
	delete(r.groups, g.key)
	r.order.Remove(g.elem)
	metrics.ReassemblyActiveGroups.Dec()
}
