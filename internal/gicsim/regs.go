package gicsim

// GICv3 register offsets modelled by the simulator.
const (
	// Distributor
	gicdCtlr       = 0x0000 // Distributor Control Register
	gicdTyper      = 0x0004 // Interrupt Controller Type Register
	gicdIidr       = 0x0008 // Distributor Implementer Identification Register
	gicdIgroupr    = 0x0080 // Interrupt Group Registers
	gicdIsenabler  = 0x0100 // Interrupt Set-Enable Registers
	gicdIcenabler  = 0x0180 // Interrupt Clear-Enable Registers
	gicdIspendr    = 0x0200 // Interrupt Set-Pending Registers
	gicdIcpendr    = 0x0280 // Interrupt Clear-Pending Registers
	gicdIsactiver  = 0x0300 // Interrupt Set-Active Registers
	gicdIcactiver  = 0x0380 // Interrupt Clear-Active Registers
	gicdIpriorityr = 0x0400 // Interrupt Priority Registers
	gicdIgrpmodr   = 0x0D00 // Interrupt Group Modifier Registers
	gicdIrouter    = 0x6000 // Interrupt Routing Registers
	gicdPidr2      = 0xFFE8 // Peripheral ID 2
	gicdSize       = 0x10000

	// Redistributor RD_base
	gicrCtlr  = 0x0000 // Redistributor Control Register
	gicrIidr  = 0x0004 // Implementer Identification Register
	gicrTyper = 0x0008 // Redistributor Type Register
	gicrWaker = 0x0014 // Redistributor Wake Register

	// Redistributor SGI_base; interrupt registers share the distributor layout.
	gicrSGIOffset    = 0x10000
	gicrPidr2RDBase  = 0xFFE8
	gicrPidr2SGIBase = gicrSGIOffset + 0xFFE8
	gicrFrameSize    = 0x20000

	gicArchRevGICv3 = 0x30
	armIIDR         = 0x0200043B
)

const (
	ctlrEnableGrp1S = 1 << 2
	ctlrAREs        = 1 << 4
	ctlrAREns       = 1 << 5
	gicdCtlrRWP     = 1 << 31
	gicrCtlrRWP     = 1 << 3

	typerSecurityExtn = 1 << 10
	gicrTyperLast     = 1 << 4

	irouterIRM  = 1 << 31
	irouterMask = 0xff_0000_0000 | irouterIRM | 0xff_ffff

	sgirIRM = 1 << 40

	spuriousID = 1023
)
