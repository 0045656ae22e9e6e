package features

import "sync/atomic"

// Holder publishes the current Encoder. Readers call Load once per request
// and keep using that snapshot; Swap replaces it without locking readers out.
type Holder struct {
	p atomic.Pointer[Encoder]
}

func NewHolder(e *Encoder) *Holder {
	h := &Holder{}
	h.p.Store(e)
	return h
}

func (h *Holder) Load() *Encoder { return h.p.Load() }

// Swap installs e and returns the previous encoder.
func (h *Holder) Swap(e *Encoder) *Encoder { return h.p.Swap(e) }
