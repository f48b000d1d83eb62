package gic

import "log/slog"

// Handler services an acknowledged interrupt.
type Handler interface {
	Handle(id uint32)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(id uint32)

func (f HandlerFunc) Handle(id uint32) { f(id) }

// Dispatch is the top half run on interrupt entry. It reads the highest
// priority pending interrupt and, unless that is spurious, acknowledges it,
// calls h and signals end of interrupt. It returns the serviced id and
// whether anything was serviced.
//
// End of interrupt is written exactly once per acknowledged id, including
// when h panics, so the controller never keeps the id active forever.
func (c *Controller) Dispatch(h Handler) (uint32, bool) {
	if id := c.cpu.HPPIR1() & intidMask; id == SpuriousID {
		slog.Debug("gic: ignoring spurious interrupt", "core", c.cpu.CorePos())
		return SpuriousID, false
	}

	id := c.cpu.IAR1() & intidMask
	if id == SpuriousID {
		// Withdrawn between the two reads; nothing was acknowledged.
		slog.Debug("gic: interrupt withdrawn before acknowledge", "core", c.cpu.CorePos())
		return SpuriousID, false
	}

	defer c.endOfInterrupt(id)
	h.Handle(id)
	return id, true
}

func (c *Controller) endOfInterrupt(id uint32) {
	c.cpu.EOIR1(id)
	c.cpu.ISB()
}
