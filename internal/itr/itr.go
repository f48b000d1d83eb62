// Package itr is the generic interrupt layer between drivers and the
// interrupt controller: drivers register handlers by interrupt id, the
// controller's dispatch routine calls back into Handle.
package itr

import (
	"fmt"
	"log/slog"
	"sync"
)

// Chip is the operation table an interrupt controller exposes.
type Chip interface {
	Add(id uint32, flags uint32)
	Enable(id uint32)
	Disable(id uint32)
	RaisePending(id uint32)
	RaiseSGI(id uint32, cpuMask uint8)
	SetAffinity(id uint32, cpuMask uint8)
}

// Result is returned by a handler callback.
type Result int

const (
	Handled Result = iota
	NotHandled
)

// Handler binds a callback to one interrupt id.
type Handler struct {
	ID    uint32
	Flags uint32
	Fn    func(id uint32) Result
}

// UnhandledError is the panic value raised when the controller delivers an
// interrupt nobody registered for.
type UnhandledError struct {
	ID uint32
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("itr: no handler for interrupt %d", e.ID)
}

// Framework owns the handler registry and serializes configuration calls
// to the chip, since the chip's shared registers are not locked by the
// driver.
type Framework struct {
	mu       sync.Mutex
	chip     Chip
	handlers map[uint32]*Handler
	counts   map[uint32]uint64
}

// New builds a framework over chip.
func New(chip Chip) *Framework {
	return &Framework{
		chip:     chip,
		handlers: make(map[uint32]*Handler),
		counts:   make(map[uint32]uint64),
	}
}

// Register adds h and configures its interrupt on the chip. The interrupt
// stays disabled until Enable.
func (f *Framework) Register(h *Handler) error {
	if h == nil || h.Fn == nil {
		return fmt.Errorf("itr: register: nil handler")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[h.ID]; ok {
		return fmt.Errorf("itr: register: interrupt %d already has a handler", h.ID)
	}
	f.chip.Add(h.ID, h.Flags)
	f.handlers[h.ID] = h
	return nil
}

// Unregister disables id and drops its handler.
func (f *Framework) Unregister(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[id]; !ok {
		return
	}
	f.chip.Disable(id)
	delete(f.handlers, id)
}

func (f *Framework) Enable(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chip.Enable(id)
}

func (f *Framework) Disable(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chip.Disable(id)
}

func (f *Framework) RaisePending(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chip.RaisePending(id)
}

func (f *Framework) RaiseSGI(id uint32, cpuMask uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chip.RaiseSGI(id, cpuMask)
}

func (f *Framework) SetAffinity(id uint32, cpuMask uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chip.SetAffinity(id, cpuMask)
}

// Handle runs the handler registered for id. It is called from the
// controller's dispatch routine with id already acknowledged. A handler that
// reports NotHandled gets its interrupt disabled so it cannot storm.
func (f *Framework) Handle(id uint32) {
	f.mu.Lock()
	h, ok := f.handlers[id]
	if ok {
		f.counts[id]++
	}
	f.mu.Unlock()

	if !ok {
		err := &UnhandledError{ID: id}
		slog.Error("itr: fatal", "error", err)
		panic(err)
	}

	if h.Fn(id) != Handled {
		slog.Error("itr: disabling interrupt not handled by its handler", "id", id)
		f.Disable(id)
	}
}

// Count returns how many times id has been dispatched to its handler.
func (f *Framework) Count(id uint32) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id]
}
