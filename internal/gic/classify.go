package gic

// Group is the security group an interrupt is assigned to.
type Group int

const (
	Group0 Group = iota
	Group1Secure
	Group1NonSecure
)

func (g Group) String() string {
	switch g {
	case Group0:
		return "G0"
	case Group1Secure:
		return "G1S"
	case Group1NonSecure:
		return "G1NS"
	default:
		return "unknown"
	}
}

// IsPerCore reports whether id is an SGI or PPI, whose state is banked in
// the redistributor of each core rather than held in the distributor.
func IsPerCore(id uint32) bool {
	return id < MinSPIID
}

// decodeGroup maps the IGRPMODR and IGROUPR bits of an interrupt to its
// group. The reserved combination (1, 1) reads as Non-secure Group 1.
func decodeGroup(mod, status bool) Group {
	switch {
	case !mod && !status:
		return Group0
	case mod && !status:
		return Group1Secure
	default:
		return Group1NonSecure
	}
}
