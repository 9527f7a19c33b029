package ufs

import (
	"encoding/binary"
	"testing"
	"time"
)

// Geometry of the images built by testImage: 8K blocks of eight 1K
// fragments, one cylinder group of 128 inodes.
const (
	testBsize  = 8192
	testFsize  = 1024
	testFrag   = 8
	testIpg    = 128
	testInopb  = testBsize / InodeSize
	testNindir = testBsize / 4
	testCblkno = 16
	testIblkno = 24
	testDblkno = testIblkno + testIpg/testInopb*testFrag
)

var testTime = time.Unix(1700000000, 250000*int64(time.Microsecond))

// testImage assembles a UFS image in memory.
type testImage struct {
	order binary.ByteOrder
	data  []byte
	next  uint32
}

func newTestImage(order binary.ByteOrder) *testImage {
	im := &testImage{
		order: order,
		data:  make([]byte, testDblkno*testFsize),
		next:  testDblkno,
	}
	im.writeSuperblock()
	im.writeCylinderGroup()
	return im
}

func (im *testImage) u16(off int, v uint16) { im.order.PutUint16(im.data[off:], v) }
func (im *testImage) u32(off int, v uint32) { im.order.PutUint32(im.data[off:], v) }

func (im *testImage) writeSuperblock() {
	sb := func(off int, v uint32) { im.u32(SuperblockOffset+off, v) }
	sb(sbSblkno, 8)
	sb(sbCblkno, testCblkno)
	sb(sbIblkno, testIblkno)
	sb(sbDblkno, testDblkno)
	sb(sbCgoffset, 0)
	sb(sbCgmask, 0xffffffff)
	sb(sbTime, uint32(testTime.Unix()))
	sb(sbSize, 4096)
	sb(sbDsize, 4096-testDblkno)
	sb(sbNcg, 1)
	sb(sbBsize, testBsize)
	sb(sbFsize, testFsize)
	sb(sbFrag, testFrag)
	sb(sbMinfree, 10)
	sb(sbBmask, ^uint32(testBsize-1))
	sb(sbFmask, ^uint32(testFsize-1))
	sb(sbBshift, 13)
	sb(sbFshift, 10)
	sb(sbFragshift, 3)
	sb(sbFsbtodb, 1)
	sb(sbSbsize, 2048)
	sb(sbNindir, testNindir)
	sb(sbInopb, testInopb)
	sb(sbNspf, 2)
	sb(sbCpg, 16)
	sb(sbIpg, testIpg)
	sb(sbFpg, 4096)
	sb(sbCstotal, 3)
	sb(sbCstotal+4, 400)
	sb(sbCstotal+8, 120)
	sb(sbCstotal+12, 7)
	im.data[SuperblockOffset+sbClean] = byte(StateStable)
	im.data[SuperblockOffset+sbFlags] = byte(FlagLargeFiles)
	copy(im.data[SuperblockOffset+sbFsmnt:], "/export/home")
	sb(sbMagic, Magic)
}

func (im *testImage) writeCylinderGroup() {
	base := testCblkno * testFsize
	im.u32(base+cgMagic, CGMagic)
	im.u32(base+cgTime, uint32(testTime.Unix()))
	im.u32(base+cgCgx, 0)
	im.u16(base+cgNcyl, 16)
	im.u16(base+cgNiblk, testIpg/testInopb*testFrag)
	im.u32(base+cgNdblk, 4096-testDblkno)
	im.u32(base+cgCs, 3)
	im.u32(base+cgCs+4, 400)
	im.u32(base+cgCs+8, 120)
	im.u32(base+cgCs+12, 7)
}

// alloc appends a zeroed block and returns its fragment address.
func (im *testImage) alloc() uint32 {
	addr := im.next
	im.next += testFrag
	im.data = append(im.data, make([]byte, testBsize)...)
	return addr
}

// block returns the block at fragment address addr.
func (im *testImage) block(addr uint32) []byte {
	off := int(addr) * testFsize
	return im.data[off : off+testBsize]
}

// setIndirect stores addr as entry idx of the indirect block at ind.
func (im *testImage) setIndirect(ind uint32, idx int, addr uint32) {
	im.order.PutUint32(im.block(ind)[idx*4:], addr)
}

// testInode is the subset of inode fields the tests care about.
type testInode struct {
	mode   uint16
	nlink  uint16
	uid    uint32
	gid    uint32
	size   uint64
	db     [NDADDR]uint32
	ib     [NIADDR]uint32
	blocks uint32
	raw    []byte // overrides the address table, for fast symlinks
}

func (im *testImage) inodeOffset(ino uint32) int {
	frag := testIblkno + (ino%testIpg)/testInopb*testFrag
	return int(frag)*testFsize + int(ino%testInopb)*InodeSize
}

func (im *testImage) putInode(ino uint32, in testInode) {
	off := im.inodeOffset(ino)
	im.u16(off+diMode, in.mode)
	im.u16(off+diNlink, in.nlink)
	im.u16(off+diSUID, uint16(in.uid))
	im.u16(off+diSGID, uint16(in.gid))
	im.order.PutUint64(im.data[off+diSize:], in.size)
	for _, t := range []int{diAtime, diMtime, diCtime} {
		im.u32(off+t, uint32(testTime.Unix()))
		im.u32(off+t+4, uint32(testTime.Nanosecond()/1000))
	}
	for i, a := range in.db {
		im.u32(off+diDB+4*i, a)
	}
	for i, a := range in.ib {
		im.u32(off+diIB+4*i, a)
	}
	if in.raw != nil {
		copy(im.data[off+diDB:off+diFlags], in.raw)
	}
	im.u32(off+diBlocks, in.blocks)
	im.u32(off+diGen, 7)
	im.u32(off+diUID, in.uid)
	im.u32(off+diGID, in.gid)
}

// file stores content in freshly allocated direct blocks of inode ino.
func (im *testImage) file(ino uint32, perm uint16, content []byte) {
	in := testInode{mode: uint16(TypeRegular)<<modeTypeSh | perm, nlink: 1, size: uint64(len(content))}
	for i := 0; len(content) > 0; i++ {
		in.db[i] = im.alloc()
		n := copy(im.block(in.db[i]), content)
		content = content[n:]
		in.blocks += testBsize / DevBlockSize
	}
	im.putInode(ino, in)
}

// testDirent is one record to store in a directory.
type testDirent struct {
	ino  uint32
	name string
}

// putDirent encodes a directory record at b and returns its length, which
// is reclen if nonzero and the minimal size otherwise.
func (im *testImage) putDirent(b []byte, ino uint32, name string, reclen uint16) uint16 {
	if reclen == 0 {
		reclen = DirSize(uint16(len(name)))
	}
	im.order.PutUint32(b[0:], ino)
	im.order.PutUint16(b[4:], reclen)
	im.order.PutUint16(b[6:], uint16(len(name)))
	copy(b[DirPrefixSize:], name)
	return reclen
}

// dir stores a 512-byte directory holding ".", ".." and entries. The last
// record is stretched to fill the directory.
func (im *testImage) dir(ino, parent uint32, entries ...testDirent) {
	const size = 512
	addr := im.alloc()
	b := im.block(addr)[:size]
	all := append([]testDirent{{ino, "."}, {parent, ".."}}, entries...)
	off := 0
	for i, e := range all {
		var reclen uint16
		if i == len(all)-1 {
			reclen = uint16(size - off)
		}
		off += int(im.putDirent(b[off:], e.ino, e.name, reclen))
	}
	im.putInode(ino, testInode{
		mode:   uint16(TypeDir)<<modeTypeSh | 0o755,
		nlink:  2,
		size:   size,
		db:     [NDADDR]uint32{addr},
		blocks: testBsize / DevBlockSize,
	})
}

// fs opens the image.
func (im *testImage) fs(t *testing.T) *FS {
	t.Helper()
	f, err := New(im.data)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

// Inode numbers of the standard tree.
const (
	inoRoot  = RootIno
	inoA     = 3
	inoB     = 4
	inoHello = 5
	inoLink  = 6
	inoEmpty = 7
)

var helloContent = []byte("hello, world\n")

// newTreeImage builds
//
//	/a/         directory
//	/a/b        "b\n" in one fragment
//	/hello      helloContent
//	/empty      empty file
//	/lnk        fast symlink to "a/b"
func newTreeImage(order binary.ByteOrder) *testImage {
	im := newTestImage(order)
	im.dir(inoRoot, inoRoot,
		testDirent{inoA, "a"},
		testDirent{inoHello, "hello"},
		testDirent{inoEmpty, "empty"},
		testDirent{inoLink, "lnk"},
	)
	im.dir(inoA, inoRoot, testDirent{inoB, "b"})
	im.file(inoB, 0o644, []byte("b\n"))
	im.file(inoHello, 0o644, helloContent)
	im.file(inoEmpty, 0o600, nil)
	im.putInode(inoLink, testInode{
		mode:  uint16(TypeSymlink)<<modeTypeSh | 0o777,
		nlink: 1,
		size:  3,
		raw:   []byte("a/b"),
	})
	return im
}
