// Package ufs implements read-only access to Berkeley Fast File System
// (UFS) images as written by Solaris and illumos.
//
// The whole image is held in memory (usually mapped read-only from the
// image file) and every decoded object is a view into that buffer: nothing
// is cached and nothing is ever written back. A single FS may be used from
// many goroutines at once.
//
// Reference: Marshall K. McKusick, William N. Joy, Samuel J. Leffler and
// Robert S. Fabry, "A Fast File System for UNIX", ACM TOCS 2(3), 1984.
package ufs

import (
	"errors"
)

const (
	// DevBlockSize is the size of a sector on the underlying device.
	DevBlockSize = 512
	// DevBlockShift is log2(DevBlockSize).
	DevBlockShift = 9

	// BootBlockSize is the size of the reserved region at the start of
	// the image.
	BootBlockSize = 8192
	// SuperblockOffset is the byte offset of the primary superblock.
	SuperblockOffset = BootBlockSize
	// SuperblockSize is the size of the region reserved for the superblock.
	SuperblockSize = 8192

	// Magic identifies a UFS superblock.
	Magic = 0x011954
	// CGMagic identifies a cylinder group header.
	CGMagic = 0x090255

	// InodeSize is the size of an on-disk inode record.
	InodeSize = 128
	// RootIno is the inode number of the root directory. Inode 0 marks an
	// unused slot and inode 1 historically held bad blocks.
	RootIno = 2

	// NDADDR is the number of direct block addresses in an inode.
	NDADDR = 12
	// NIADDR is the number of indirect block addresses in an inode; entry
	// i is (i+1)-fold indirect.
	NIADDR = 3

	// fileSizeBits is the width of a byte offset: 32-bit fragment
	// addresses scaled by the device block size.
	fileSizeBits = 8*4 + DevBlockShift
	// MaxOffset is the largest byte offset a file can have.
	MaxOffset = 1<<(fileSizeBits-1) - 1

	// FSLSize is the number of bytes of the address table a fast
	// symbolic link may occupy.
	FSLSize = (NDADDR + NIADDR - 1) * 4
	// MaxPathLen is the longest symbolic link target.
	MaxPathLen = 1024

	// DirPrefixSize is the size of the fixed part of a directory record.
	DirPrefixSize = 8
	// MaxNameLen is the longest name a directory record can hold.
	MaxNameLen = 255
)

var (
	// ErrBadMagic is returned when the superblock magic does not match.
	ErrBadMagic = errors.New("ufs: bad superblock magic")
	// ErrBadCGMagic is returned when a cylinder group header is invalid.
	ErrBadCGMagic = errors.New("ufs: bad cylinder group magic")
	// ErrCorrupt is returned for structurally impossible on-disk values.
	ErrCorrupt = errors.New("ufs: corrupt filesystem")
	// ErrOutOfRange is returned when an address points outside the image.
	ErrOutOfRange = errors.New("ufs: address outside image")
	// ErrInodeRange is returned for inode numbers the filesystem cannot hold.
	ErrInodeRange = errors.New("ufs: inode number out of range")
	// ErrOffsetTooLarge is returned for file offsets the format cannot
	// represent. It is distinct from a hole.
	ErrOffsetTooLarge = errors.New("ufs: file offset too large")
	// ErrNotDir is returned when a directory was required.
	ErrNotDir = errors.New("ufs: not a directory")
	// ErrNotSymlink is returned by Readlink on anything but a symbolic link.
	ErrNotSymlink = errors.New("ufs: not a symbolic link")
	// ErrBadState is returned for an unknown superblock clean byte.
	ErrBadState = errors.New("ufs: unknown filesystem state")
)
