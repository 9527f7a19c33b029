package ufs

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDecodeSuperblock(t *testing.T) {
	want := &Superblock{
		Sblkno:    8,
		Cblkno:    testCblkno,
		Iblkno:    testIblkno,
		Dblkno:    testDblkno,
		CGMask:    0xffffffff,
		Time:      uint32(testTime.Unix()),
		Size:      4096,
		DSize:     4096 - testDblkno,
		Ncg:       1,
		Bsize:     testBsize,
		Fsize:     testFsize,
		Frag:      testFrag,
		MinFree:   10,
		Bmask:     ^uint32(testBsize - 1),
		Fmask:     ^uint32(testFsize - 1),
		Bshift:    13,
		Fshift:    10,
		FragShift: 3,
		FsbToDb:   1,
		SBSize:    2048,
		Nindir:    testNindir,
		Inopb:     testInopb,
		Nspf:      2,
		Cpg:       16,
		Ipg:       testIpg,
		Fpg:       4096,
		CSTotal:   Summary{NDir: 3, NBFree: 400, NIFree: 120, NFFree: 7},
		Clean:     byte(StateStable),
		RawFlags:  byte(FlagLargeFiles),
		MountPt:   "/export/home",
		Magic:     Magic,
	}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			im := newTestImage(order)
			sb, err := DecodeSuperblock(im.data)
			if err != nil {
				t.Fatalf("DecodeSuperblock() error = %v", err)
			}
			if diff := cmp.Diff(want, sb, cmpopts.IgnoreUnexported(Superblock{})); diff != "" {
				t.Errorf("DecodeSuperblock() mismatch (-want +got):\n%s", diff)
			}
			if sb.ByteOrder() != order {
				t.Errorf("ByteOrder() = %v, want %v", sb.ByteOrder(), order)
			}
			state, err := sb.State()
			if err != nil || state != StateStable {
				t.Errorf("State() = %v, %v; want %v, nil", state, err, StateStable)
			}
			if !sb.Flags().LargeFiles() {
				t.Errorf("Flags().LargeFiles() = false, want true")
			}
		})
	}
}

func TestDecodeSuperblockErrors(t *testing.T) {
	tests := []struct {
		name   string
		mangle func(im *testImage) []byte
		want   error
	}{
		{
			name:   "bad magic",
			mangle: func(im *testImage) []byte { im.u32(SuperblockOffset+sbMagic, 0x19540119); return im.data },
			want:   ErrBadMagic,
		},
		{
			name:   "truncated",
			mangle: func(im *testImage) []byte { return im.data[:SuperblockOffset+sbMagic] },
			want:   ErrBadMagic,
		},
		{
			name:   "zero fragment size",
			mangle: func(im *testImage) []byte { im.u32(SuperblockOffset+sbFsize, 0); return im.data },
			want:   ErrCorrupt,
		},
		{
			name:   "block size mismatch",
			mangle: func(im *testImage) []byte { im.u32(SuperblockOffset+sbFrag, 4); return im.data },
			want:   ErrCorrupt,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSuperblock(tt.mangle(newTestImage(binary.LittleEndian)))
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeSuperblock() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSuperblockState(t *testing.T) {
	tests := []struct {
		clean   byte
		want    State
		wantErr bool
	}{
		{0x00, StateActive, false},
		{0x01, StateClean, false},
		{0x02, StateStable, false},
		{0xfc, StateFix, false},
		{0xfd, StateLog, false},
		{0xfe, StateSuspend, false},
		{0xff, StateBad, false},
		{0x42, State(0x42), true},
	}
	for _, tt := range tests {
		sb := &Superblock{Clean: tt.clean}
		got, err := sb.State()
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("State() with clean %#x = %v, %v; want %v, error %v", tt.clean, got, err, tt.want, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, ErrBadState) {
			t.Errorf("State() error = %v, want %v", err, ErrBadState)
		}
	}
}
