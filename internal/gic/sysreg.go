package gic

// CPUInterface is the GICv3 system-register interface (ICC_*_EL1) of the
// core executing the driver, plus the core's position. Implementations
// must act on the calling core.
type CPUInterface interface {
	// CorePos returns the linear index of the executing core.
	CorePos() int

	// SRE reads ICC_SRE_EL1.
	SRE() uint64

	// HPPIR1 reads ICC_HPPIR1_EL1 without side effects.
	HPPIR1() uint32

	// IAR1 reads ICC_IAR1_EL1, acknowledging the returned interrupt.
	IAR1() uint32

	// EOIR1 writes ICC_EOIR1_EL1.
	EOIR1(id uint32)

	// SGI1R writes ICC_SGI1R_EL1 (Secure Group 1 SGI).
	SGI1R(v uint64)

	// ASGI1R writes ICC_ASGI1R_EL1 (Non-secure Group 1 SGI).
	ASGI1R(v uint64)

	// ISB is an instruction synchronization barrier.
	ISB()
}

const sreEnable = 1 << 0
