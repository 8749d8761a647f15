package session

// registry tracks open data channels by stream identifier. It is only touched
// from the session's execution queue.
type registry struct {
	channels map[uint16]DataChannel
}

func newRegistry() *registry {
	return &registry{channels: make(map[uint16]DataChannel)}
}

// register records ch if it has an identifier.
func (r *registry) register(ch DataChannel) {
	id := ch.ID()
	if id == nil {
		return
	}
	r.channels[*id] = ch
}

// unregister removes ch. Unknown or unidentified channels are ignored.
func (r *registry) unregister(ch DataChannel) {
	id := ch.ID()
	if id == nil {
		return
	}
	delete(r.channels, *id)
}

func (r *registry) lookup(id uint16) (DataChannel, bool) {
	ch, ok := r.channels[id]
	return ch, ok
}

func (r *registry) len() int {
	return len(r.channels)
}

func (r *registry) reset() {
	clear(r.channels)
}
