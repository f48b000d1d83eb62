package gic

// Interrupt identifier ranges and architectural constants.
const (
	// MinSPIID is the first shared peripheral interrupt. Identifiers below it
	// are banked per core in the redistributor.
	MinSPIID = 32

	// NumSGI is the number of software generated interrupts.
	NumSGI = 16

	// MinSecureSGIID splits the SGI range: lower ids are raised as
	// Non-secure Group 1, the rest as Secure Group 1.
	MinSecureSGIID = 8

	// SpuriousID is returned by the CPU interface when nothing is pending.
	SpuriousID = 1023

	// HighestSecurePriority is the priority given to every added interrupt.
	HighestSecurePriority = 0x00

	intidMask = 0xffffff
)

// Distributor register offsets (GICD_*).
const (
	gicdCtlr       = 0x0000
	gicdTyper      = 0x0004
	gicdIgroupr    = 0x0080
	gicdIsenabler  = 0x0100
	gicdIcenabler  = 0x0180
	gicdIspendr    = 0x0200
	gicdIcpendr    = 0x0280
	gicdIsactiver  = 0x0300
	gicdIpriorityr = 0x0400
	gicdIgrpmodr   = 0x0D00
	gicdIrouter    = 0x6000
)

// Redistributor register offsets (GICR_*). The interrupt registers live in
// the SGI_base frame and share their layout with the distributor's.
const (
	gicrCtlr      = 0x0000
	gicrTyper     = 0x0008
	gicrSGIOffset = 0x10000

	// RedistributorStride is the size of one core's RD_base + SGI_base pair.
	RedistributorStride = 1 << 17
)

// GICD_CTLR bits.
const (
	CtlrEnableGrp0   = 1 << 0
	CtlrEnableGrp1NS = 1 << 1
	CtlrEnableGrp1S  = 1 << 2
	CtlrAREs         = 1 << 4
	CtlrAREns        = 1 << 5
	CtlrRWP          = 1 << 31
)

// GICR_CTLR bits.
const (
	gicrCtlrRWP = 1 << 3
)

// GICR_TYPER fields.
const (
	typerLast          = 1 << 4
	typerProcNumShift  = 8
	typerProcNumMask   = 0xffff
	typerITLinesNoMask = 0x1f
)

// GICD_IROUTER fields.
const (
	irouterAff0Shift = 0
	irouterAff1Shift = 8
	irouterAff2Shift = 16
	irouterIRMShift  = 31
	irouterAff3Shift = 32

	// IrouterIRM routes to any participating core.
	IrouterIRM = 1 << irouterIRMShift
)

// ICC_SGI1R_EL1 / ICC_ASGI1R_EL1 fields.
const (
	sgirTargetListShift = 0
	sgirAff1Shift       = 16
	sgirIntIDShift      = 24
	sgirAff2Shift       = 32
	sgirAff3Shift       = 48
)

// RouterValue encodes a GICD_IROUTER value. irm selects 1-of-N delivery, in
// which case the affinity fields are ignored by hardware.
func RouterValue(aff3, aff2, aff1, aff0 uint8, irm bool) uint64 {
	v := uint64(aff3)<<irouterAff3Shift |
		uint64(aff2)<<irouterAff2Shift |
		uint64(aff1)<<irouterAff1Shift |
		uint64(aff0)<<irouterAff0Shift
	if irm {
		v |= IrouterIRM
	}
	return v
}

// SGIValue encodes an ICC_SGI1R_EL1 value targeting the cores in targets
// within the cluster at aff3.aff2.aff1.
func SGIValue(aff3, aff2, aff1 uint8, id uint32, targets uint16) uint64 {
	return uint64(aff3)<<sgirAff3Shift |
		uint64(aff2)<<sgirAff2Shift |
		uint64(aff1)<<sgirAff1Shift |
		uint64(id&0xf)<<sgirIntIDShift |
		uint64(targets)<<sgirTargetListShift
}
