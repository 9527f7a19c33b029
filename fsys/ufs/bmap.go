package ufs

import "fmt"

// Block is the result of mapping a file offset: either a hole or one
// fragment of the image.
type Block struct {
	data []byte
	off  uint64
}

// Hole reports whether the fragment is unallocated and reads as zeros.
func (b Block) Hole() bool { return b.data == nil }

// Bytes returns the fragment, borrowed from the image. It is nil for a hole.
func (b Block) Bytes() []byte { return b.data }

// Offset returns the byte offset of the fragment in the image. It is zero
// for a hole.
func (b Block) Offset() uint64 { return b.off }

// Bmap maps byte off of the file to the fragment holding it.
//
// Offsets in the first NDADDR blocks are resolved from the direct table.
// Beyond that the remaining block number is located in the singly, doubly
// or triply indirect tree, and each level of the tree is read in turn. A
// zero address anywhere on the way means the whole subtree is a hole.
// Offsets beyond the triply indirect tree yield ErrOffsetTooLarge.
func (ip *Inode) Bmap(off uint64) (Block, error) {
	blk, _, err := ip.bmap(off)
	return blk, err
}

// bmap is Bmap that also returns, for a hole, the first byte offset past the
// unallocated run of blocks containing off.
func (ip *Inode) bmap(off uint64) (Block, uint64, error) {
	sb := ip.fs.sb
	lbn := sb.LogicalBlock(off)
	if lbn < NDADDR {
		blk, err := ip.fragment(ip.db[lbn], off)
		return blk, (lbn + 1) << sb.Bshift, err
	}

	first := lbn
	nindir := uint64(sb.Nindir)
	lbn -= NDADDR
	span := uint64(1)
	depth := 0
	for ; depth < NIADDR; depth++ {
		span *= nindir
		if lbn < span {
			break
		}
		lbn -= span
	}
	if depth == NIADDR {
		return Block{}, 0, fmt.Errorf("%w: offset %d of inode %d", ErrOffsetTooLarge, off, ip.ino)
	}

	// holeEnd is the end of the span blocks covered by a zero pointer.
	holeEnd := func() uint64 { return (first + span - lbn%span) << sb.Bshift }

	nb := ip.ib[depth]
	for level := 0; level <= depth; level++ {
		dbn := sb.FragToDevBlock(uint64(nb))
		if dbn == 0 {
			return Block{}, holeEnd(), nil
		}
		span /= nindir
		idx := (lbn / span) % nindir
		b, err := ip.fs.BytesAt(dbn*DevBlockSize+idx*4, 4)
		if err != nil {
			return Block{}, 0, fmt.Errorf("inode %d: indirect level %d: %w", ip.ino, level, err)
		}
		nb = sb.order.Uint32(b)
		if nb == 0 {
			return Block{}, holeEnd(), nil
		}
	}
	blk, err := ip.fragment(nb, off)
	return blk, (first + 1) << sb.Bshift, err
}

// fragment returns the fragment of block addr that holds byte off.
func (ip *Inode) fragment(addr uint32, off uint64) (Block, error) {
	if addr == 0 {
		return Block{}, nil
	}
	sb := ip.fs.sb
	fsize := uint64(sb.Fsize)
	start := (uint64(addr) + sb.FragInBlock(off)) * fsize
	b, err := ip.fs.BytesAt(start, fsize)
	if err != nil {
		return Block{}, fmt.Errorf("inode %d: offset %d: %w", ip.ino, off, err)
	}
	return Block{data: b, off: start}, nil
}
