package ufs

import "fmt"

// CGBase returns the fragment address at which cylinder group cg begins.
// It panics if cg is not a group of this filesystem.
func (sb *Superblock) CGBase(cg uint32) uint32 {
	if cg >= sb.Ncg {
		panic(fmt.Sprintf("ufs: cylinder group %d out of range [0, %d)", cg, sb.Ncg))
	}
	return sb.Fpg * cg
}

// CGStart returns the address of the group's bookkeeping area. It is offset
// from CGBase by a per-group skew so that the superblock copies spiral down
// through the pack instead of sitting on one platter.
func (sb *Superblock) CGStart(cg uint32) uint32 {
	return sb.CGBase(cg) + sb.CGOffset*(cg&^sb.CGMask)
}

// CGTod returns the address of the cylinder group header.
func (sb *Superblock) CGTod(cg uint32) uint32 {
	return sb.CGStart(cg) + sb.Cblkno
}

// CGIMin returns the address of the group's inode table.
func (sb *Superblock) CGIMin(cg uint32) uint32 {
	return sb.CGStart(cg) + sb.Iblkno
}

// CGDMin returns the address of the group's first data block.
func (sb *Superblock) CGDMin(cg uint32) uint32 {
	return sb.CGStart(cg) + sb.Dblkno
}

// BlocksToFrags converts a count of blocks to a count of fragments.
func (sb *Superblock) BlocksToFrags(blks uint32) uint32 {
	return blks << sb.FragShift
}

// InoToCG returns the cylinder group holding inode ino.
func (sb *Superblock) InoToCG(ino uint32) uint32 {
	return ino / sb.Ipg
}

// InoToFrag returns the fragment address of the inode table block holding
// inode ino.
func (sb *Superblock) InoToFrag(ino uint32) uint32 {
	return sb.CGIMin(sb.InoToCG(ino)) + sb.BlocksToFrags((ino%sb.Ipg)/sb.Inopb)
}

// InoBlockOffset returns the index of inode ino within its inode table block.
func (sb *Superblock) InoBlockOffset(ino uint32) uint32 {
	return ino % sb.Inopb
}

// InodesPerFrag returns the number of inode records in one fragment.
func (sb *Superblock) InodesPerFrag() uint32 {
	return sb.Inopb >> sb.FragShift
}

// InodeOffset returns the byte offset of inode ino from the start of the
// image.
func (sb *Superblock) InodeOffset(ino uint32) uint64 {
	return uint64(sb.InoToFrag(ino))*uint64(sb.Fsize) + uint64(sb.InoBlockOffset(ino))*InodeSize
}

// LogicalBlock returns the logical block of a file containing byte off.
func (sb *Superblock) LogicalBlock(off uint64) uint64 {
	return off >> sb.Bshift
}

// FragInBlock returns which fragment of its block byte off falls in.
func (sb *Superblock) FragInBlock(off uint64) uint64 {
	return (off % uint64(sb.Bsize)) / uint64(sb.Fsize)
}

// FragToDevBlock converts a fragment address to a device block address.
func (sb *Superblock) FragToDevBlock(frag uint64) uint64 {
	return frag << sb.FsbToDb
}

// MaxInodes returns the number of inode slots in the filesystem.
func (sb *Superblock) MaxInodes() uint64 {
	return uint64(sb.Ncg) * uint64(sb.Ipg)
}
