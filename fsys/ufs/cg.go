package ufs

import (
	"fmt"
	"time"
)

// Offsets of cylinder group header fields.
const (
	cgMagic  = 4
	cgTime   = 8
	cgCgx    = 12
	cgNcyl   = 16
	cgNiblk  = 18
	cgNdblk  = 20
	cgCs     = 24
	cgRotor  = 40
	cgFrotor = 44
	cgIrotor = 48

	cgHeaderSize = cgIrotor + 4
)

// CylinderGroup is the decoded header of one cylinder group. Only the
// fixed fields are decoded; the allocation maps that follow are not.
type CylinderGroup struct {
	Index  uint32    `yaml:"index"`
	Magic  uint32    `yaml:"magic"`
	Time   time.Time `yaml:"time"`
	Ncyl   int16     `yaml:"ncyl"`
	Niblk  int16     `yaml:"niblk"`
	Ndblk  uint32    `yaml:"ndblk"`
	Sum    Summary   `yaml:"summary"`
	Rotor  uint32    `yaml:"rotor"`
	Frotor uint32    `yaml:"frotor"`
	Irotor uint32    `yaml:"irotor"`
}

// CylinderGroup decodes the header of group cg.
func (f *FS) CylinderGroup(cg uint32) (*CylinderGroup, error) {
	if cg >= f.sb.Ncg {
		return nil, fmt.Errorf("%w: cylinder group %d of %d", ErrOutOfRange, cg, f.sb.Ncg)
	}
	b, err := f.BytesAt(uint64(f.sb.CGTod(cg))*f.FragSize(), cgHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("cylinder group %d: %w", cg, err)
	}
	order := f.sb.order
	u32 := func(off int) uint32 { return order.Uint32(b[off : off+4]) }

	g := &CylinderGroup{
		Index: u32(cgCgx),
		Magic: u32(cgMagic),
		Time:  time.Unix(int64(int32(u32(cgTime))), 0),
		Ncyl:  int16(order.Uint16(b[cgNcyl:])),
		Niblk: int16(order.Uint16(b[cgNiblk:])),
		Ndblk: u32(cgNdblk),
		Sum: Summary{
			NDir:   u32(cgCs),
			NBFree: u32(cgCs + 4),
			NIFree: u32(cgCs + 8),
			NFFree: u32(cgCs + 12),
		},
		Rotor:  u32(cgRotor),
		Frotor: u32(cgFrotor),
		Irotor: u32(cgIrotor),
	}
	if g.Magic != CGMagic {
		return nil, fmt.Errorf("cylinder group %d: %w: %#x", cg, ErrBadCGMagic, g.Magic)
	}
	return g, nil
}
