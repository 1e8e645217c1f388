package irsdk

import "sync"

// LiveFactory builds a fresh live handle.
type LiveFactory func() Handle

var (
	bindingMu   sync.RWMutex
	liveFactory LiveFactory
	bindingName string
)

// RegisterLive makes a live binding available to NewLive. Bindings call it
// from init so that a blank import is enough to enable live mode. The last
// registration wins.
func RegisterLive(name string, f LiveFactory) {
	bindingMu.Lock()
	defer bindingMu.Unlock()
	bindingName = name
	liveFactory = f
}

// NewLive returns a handle from the registered binding.
func NewLive() (Handle, error) {
	bindingMu.RLock()
	defer bindingMu.RUnlock()
	if liveFactory == nil {
		return nil, ErrNoLiveBinding
	}
	return liveFactory(), nil
}

// LiveBindingName returns the registered binding name, or "".
func LiveBindingName() string {
	bindingMu.RLock()
	defer bindingMu.RUnlock()
	return bindingName
}
