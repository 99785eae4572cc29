package mqtt

// bufferedMsg is a serialized message held for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the newest capacity messages published while offline,
// oldest first. The caller synchronizes access.
type ringBuffer struct {
	buf      []bufferedMsg
	capacity int
	start    int // oldest entry
	count    int
	drops    int // since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]bufferedMsg, capacity),
		capacity: capacity,
	}
}

// push appends msg, overwriting the oldest message when full. It returns
// true for the first drop after a drain.
func (r *ringBuffer) push(msg bufferedMsg) bool {
	if r.count < r.capacity {
		r.buf[(r.start+r.count)%r.capacity] = msg
		r.count++
		return false
	}
	r.buf[r.start] = msg
	r.start = (r.start + 1) % r.capacity
	r.drops++
	return r.drops == 1
}

// drainAll removes and returns every message, oldest first.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		r.drops = 0
		return nil
	}
	out := make([]bufferedMsg, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%r.capacity])
	}
	for i := range r.buf {
		r.buf[i] = bufferedMsg{}
	}
	r.start, r.count, r.drops = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}

// dropped returns how many messages were overwritten since the last drain.
func (r *ringBuffer) dropped() int {
	return r.drops
}
