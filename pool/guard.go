package pool

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// PauseView reports whether the pool accepts operations.
type PauseView interface {
	IsActive() bool
}

// AccessView evaluates the router predicate for router-only operations.
type AccessView interface {
	IsAuthorizedRouter(caller common.Address) bool
}

// Guard aborts the call when the pool is paused. A nil view means no pause
// control is wired and the pool is treated as active.
func Guard(p PauseView) error {
	if p == nil {
		return nil
	}
	if !p.IsActive() {
		return ErrPoolInactive
	}
	return nil
}

// PauseSwitch is a toggleable PauseView.
type PauseSwitch struct {
	paused atomic.Bool
}

// NewPauseSwitch returns a switch in the given initial state.
func NewPauseSwitch(paused bool) *PauseSwitch {
	s := &PauseSwitch{}
	s.paused.Store(paused)
	return s
}

func (s *PauseSwitch) IsActive() bool { return s != nil && !s.paused.Load() }

// SetPaused flips the switch and reports the previous state.
func (s *PauseSwitch) SetPaused(paused bool) bool {
	if s == nil {
		return false
	}
	return s.paused.Swap(paused)
}

// RouterSet is an AccessView backed by a fixed set of router addresses.
type RouterSet struct {
	mu      sync.RWMutex
	routers map[common.Address]struct{}
}

// NewRouterSet constructs the set from the configured router addresses.
func NewRouterSet(routers []common.Address) *RouterSet {
	set := &RouterSet{routers: make(map[common.Address]struct{}, len(routers))}
	for _, addr := range routers {
		set.routers[addr] = struct{}{}
	}
	return set
}

func (s *RouterSet) IsAuthorizedRouter(caller common.Address) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.routers[caller]
	return ok
}

// Add registers a further router address.
func (s *RouterSet) Add(addr common.Address) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routers[addr] = struct{}{}
}
