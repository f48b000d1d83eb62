//go:build baremetal

package gic

// SystemRegisters accesses the ICC_* registers of the executing core
// directly. It is only usable at EL1 with ICC_SRE_EL1.SRE set.
type SystemRegisters struct{}

func readMPIDR() uint64
func readSRE() uint64
func readHPPIR1() uint64
func readIAR1() uint64
func writeEOIR1(v uint64)
func writeSGI1R(v uint64)
func writeASGI1R(v uint64)
func isb()

// CorePos returns MPIDR_EL1.Aff0.
func (SystemRegisters) CorePos() int { return int(readMPIDR() & 0xff) }
func (SystemRegisters) SRE() uint64 { return readSRE() }
func (SystemRegisters) HPPIR1() uint32 { return uint32(readHPPIR1()) }
func (SystemRegisters) IAR1() uint32 { return uint32(readIAR1()) }
func (SystemRegisters) EOIR1(id uint32) {
	writeEOIR1(uint64(id))
}
func (SystemRegisters) SGI1R(v uint64) { writeSGI1R(v) }
func (SystemRegisters) ASGI1R(v uint64) { writeASGI1R(v) }
func (SystemRegisters) ISB() { isb() }

var (
	_ CPUInterface = SystemRegisters{}
)
