package ufs

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Offsets of superblock fields relative to SuperblockOffset.
const (
	sbSblkno    = 8
	sbCblkno    = 12
	sbIblkno    = 16
	sbDblkno    = 20
	sbCgoffset  = 24
	sbCgmask    = 28
	sbTime      = 32
	sbSize      = 36
	sbDsize     = 40
	sbNcg       = 44
	sbBsize     = 48
	sbFsize     = 52
	sbFrag      = 56
	sbMinfree   = 60
	sbBmask     = 72
	sbFmask     = 76
	sbBshift    = 80
	sbFshift    = 84
	sbFragshift = 96
	sbFsbtodb   = 100
	sbSbsize    = 104
	sbNindir    = 116
	sbInopb     = 120
	sbNspf      = 124
	sbCpg       = 180
	sbIpg       = 184
	sbFpg       = 188
	sbCstotal   = 192
	sbFmod      = 208
	sbClean     = 209
	sbRonly     = 210
	sbFlags     = 211
	sbFsmnt     = 212
	sbFsmntLen  = 512
	sbVersion   = 1320
	sbLogbno    = 1324
	sbReclaim   = 1328
	sbMagic     = 1372

	// superblockRecordSize is the number of bytes actually decoded.
	superblockRecordSize = sbMagic + 4
)

// State is the value of the superblock clean byte.
type State uint8

const (
	StateActive  State = 0x00
	StateClean   State = 0x01
	StateStable  State = 0x02
	StateFix     State = 0xfc
	StateLog     State = 0xfd
	StateSuspend State = 0xfe
	StateBad     State = 0xff
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClean:
		return "clean"
	case StateStable:
		return "stable"
	case StateFix:
		return "fix"
	case StateLog:
		return "log"
	case StateSuspend:
		return "suspend"
	case StateBad:
		return "bad"
	default:
		return fmt.Sprintf("state(%#x)", uint8(s))
	}
}

// Flags are the superblock feature flags.
type Flags uint8

// FlagLargeFiles is set once a file larger than 2GiB has existed.
const FlagLargeFiles Flags = 1

// LargeFiles reports whether FlagLargeFiles is set.
func (f Flags) LargeFiles() bool { return f&FlagLargeFiles != 0 }

// Summary holds the per-filesystem or per-group allocation counters.
type Summary struct {
	NDir   uint32 `yaml:"ndir"`
	NBFree uint32 `yaml:"nbfree"`
	NIFree uint32 `yaml:"nifree"`
	NFFree uint32 `yaml:"nffree"`
}

// Superblock is the decoded primary superblock. Disk addresses are in
// fragments unless noted otherwise.
type Superblock struct {
	Sblkno    uint32  `yaml:"sblkno"`
	Cblkno    uint32  `yaml:"cblkno"`
	Iblkno    uint32  `yaml:"iblkno"`
	Dblkno    uint32  `yaml:"dblkno"`
	CGOffset  uint32  `yaml:"cgoffset"`
	CGMask    uint32  `yaml:"cgmask"`
	Time      uint32  `yaml:"time"`
	Size      uint32  `yaml:"size"`
	DSize     uint32  `yaml:"dsize"`
	Ncg       uint32  `yaml:"ncg"`
	Bsize     uint32  `yaml:"bsize"`
	Fsize     uint32  `yaml:"fsize"`
	Frag      uint32  `yaml:"frag"`
	MinFree   uint32  `yaml:"minfree"`
	Bmask     uint32  `yaml:"bmask"`
	Fmask     uint32  `yaml:"fmask"`
	Bshift    uint32  `yaml:"bshift"`
	Fshift    uint32  `yaml:"fshift"`
	FragShift uint32  `yaml:"fragshift"`
	FsbToDb   uint32  `yaml:"fsbtodb"`
	SBSize    uint32  `yaml:"sbsize"`
	Nindir    uint32  `yaml:"nindir"`
	Inopb     uint32  `yaml:"inopb"`
	Nspf      uint32  `yaml:"nspf"`
	Cpg       uint32  `yaml:"cpg"`
	Ipg       uint32  `yaml:"ipg"`
	Fpg       uint32  `yaml:"fpg"`
	CSTotal   Summary `yaml:"cstotal"`
	Fmod      uint8   `yaml:"fmod"`
	Clean     uint8   `yaml:"clean"`
	Ronly     uint8   `yaml:"ronly"`
	RawFlags  uint8   `yaml:"flags"`
	MountPt   string  `yaml:"mountpt"`
	Version   uint32  `yaml:"version"`
	Logbno    uint32  `yaml:"logbno"`
	Reclaim   uint32  `yaml:"reclaim"`
	Magic     uint32  `yaml:"magic"`

	order binary.ByteOrder
}

// DecodeSuperblock decodes the superblock of the image b. The byte order of
// the image is taken from whichever order makes the magic number match.
func DecodeSuperblock(b []byte) (*Superblock, error) {
	if len(b) < SuperblockOffset+superblockRecordSize {
		return nil, fmt.Errorf("%w: image too small for superblock (%d bytes)", ErrBadMagic, len(b))
	}
	data := b[SuperblockOffset : SuperblockOffset+superblockRecordSize]

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(data[sbMagic:]) == Magic:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(data[sbMagic:]) == Magic:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: %#x", ErrBadMagic, binary.LittleEndian.Uint32(data[sbMagic:]))
	}

	u32 := func(off int) uint32 { return order.Uint32(data[off : off+4]) }
	sb := &Superblock{
		Sblkno:    u32(sbSblkno),
		Cblkno:    u32(sbCblkno),
		Iblkno:    u32(sbIblkno),
		Dblkno:    u32(sbDblkno),
		CGOffset:  u32(sbCgoffset),
		CGMask:    u32(sbCgmask),
		Time:      u32(sbTime),
		Size:      u32(sbSize),
		DSize:     u32(sbDsize),
		Ncg:       u32(sbNcg),
		Bsize:     u32(sbBsize),
		Fsize:     u32(sbFsize),
		Frag:      u32(sbFrag),
		MinFree:   u32(sbMinfree),
		Bmask:     u32(sbBmask),
		Fmask:     u32(sbFmask),
		Bshift:    u32(sbBshift),
		Fshift:    u32(sbFshift),
		FragShift: u32(sbFragshift),
		FsbToDb:   u32(sbFsbtodb),
		SBSize:    u32(sbSbsize),
		Nindir:    u32(sbNindir),
		Inopb:     u32(sbInopb),
		Nspf:      u32(sbNspf),
		Cpg:       u32(sbCpg),
		Ipg:       u32(sbIpg),
		Fpg:       u32(sbFpg),
		CSTotal: Summary{
			NDir:   u32(sbCstotal),
			NBFree: u32(sbCstotal + 4),
			NIFree: u32(sbCstotal + 8),
			NFFree: u32(sbCstotal + 12),
		},
		Fmod:     data[sbFmod],
		Clean:    data[sbClean],
		Ronly:    data[sbRonly],
		RawFlags: data[sbFlags],
		MountPt:  cstring(data[sbFsmnt : sbFsmnt+sbFsmntLen]),
		Version:  u32(sbVersion),
		Logbno:   u32(sbLogbno),
		Reclaim:  u32(sbReclaim),
		Magic:    u32(sbMagic),
		order:    order,
	}

	if err := sb.check(); err != nil {
		return nil, err
	}
	return sb, nil
}

// check rejects geometry that would make the address arithmetic divide by
// zero or disagree with itself.
func (sb *Superblock) check() error {
	for _, f := range []struct {
		name string
		v    uint32
	}{
		{"ncg", sb.Ncg},
		{"bsize", sb.Bsize},
		{"fsize", sb.Fsize},
		{"frag", sb.Frag},
		{"nindir", sb.Nindir},
		{"inopb", sb.Inopb},
		{"ipg", sb.Ipg},
		{"fpg", sb.Fpg},
	} {
		if f.v == 0 {
			return fmt.Errorf("%w: %s is zero", ErrCorrupt, f.name)
		}
	}
	if uint64(sb.Fsize)*uint64(sb.Frag) != uint64(sb.Bsize) {
		return fmt.Errorf("%w: bsize %d != fsize %d * frag %d", ErrCorrupt, sb.Bsize, sb.Fsize, sb.Frag)
	}
	return nil
}

// ByteOrder returns the byte order the image was written in.
func (sb *Superblock) ByteOrder() binary.ByteOrder { return sb.order }

// State returns the decoded clean byte.
func (sb *Superblock) State() (State, error) {
	switch s := State(sb.Clean); s {
	case StateActive, StateClean, StateStable, StateFix, StateLog, StateSuspend, StateBad:
		return s, nil
	default:
		return s, fmt.Errorf("%w: %#x", ErrBadState, sb.Clean)
	}
}

// Flags returns the known superblock flags; unknown bits are dropped.
func (sb *Superblock) Flags() Flags {
	return Flags(sb.RawFlags) & FlagLargeFiles
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
