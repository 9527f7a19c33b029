package cmd

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/lvdlvd/ufscat/fsys/ufs"
)

// InfoOptions controls info behavior
type InfoOptions struct {
	YAML   bool // Dump all decoded fields as YAML (-yaml)
	Groups bool // Include the cylinder group headers (-groups)
}

// infoReport is the document written by info -yaml.
type infoReport struct {
	Type       string               `yaml:"type"`
	ByteOrder  string               `yaml:"byteorder"`
	State      string               `yaml:"state"`
	Superblock *ufs.Superblock      `yaml:"superblock"`
	Groups     []*ufs.CylinderGroup `yaml:"groups,omitempty"`
	Errors     []string             `yaml:"errors,omitempty"`
}

// Info describes the filesystem: its geometry, state and, optionally, each
// cylinder group header. A damaged group header is reported and does not
// stop the listing.
func Info(f *ufs.FS, out io.Writer, opts InfoOptions) error {
	sb := f.Superblock()
	report := infoReport{
		Type:       f.Type(),
		ByteOrder:  sb.ByteOrder().String(),
		Superblock: sb,
	}
	if state, err := sb.State(); err != nil {
		report.State = err.Error()
	} else {
		report.State = state.String()
	}
	if opts.Groups {
		for cg := uint32(0); cg < f.Groups(); cg++ {
			g, err := f.CylinderGroup(cg)
			if err != nil {
				report.Errors = append(report.Errors, err.Error())
				continue
			}
			report.Groups = append(report.Groups, g)
		}
	}

	if opts.YAML {
		b, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("encoding info: %w", err)
		}
		_, err = out.Write(b)
		return err
	}

	fmt.Fprintf(out, "Filesystem type: %s (%s)\n", report.Type, report.ByteOrder)
	fmt.Fprintf(out, "Mounted on:      %s\n", sb.MountPt)
	fmt.Fprintf(out, "Last written:    %s\n", time.Unix(int64(int32(sb.Time)), 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "State:           %s\n", report.State)
	fmt.Fprintf(out, "Large files:     %v\n", sb.Flags().LargeFiles())
	fmt.Fprintf(out, "Block size:      %d\n", sb.Bsize)
	fmt.Fprintf(out, "Fragment size:   %d\n", sb.Fsize)
	fmt.Fprintf(out, "Size:            %d fragments (%d data)\n", sb.Size, sb.DSize)
	fmt.Fprintf(out, "Cylinder groups: %d (%d inodes, %d fragments each)\n", sb.Ncg, sb.Ipg, sb.Fpg)
	fmt.Fprintf(out, "Directories:     %d\n", sb.CSTotal.NDir)
	fmt.Fprintf(out, "Free:            %d blocks, %d fragments, %d inodes\n", sb.CSTotal.NBFree, sb.CSTotal.NFFree, sb.CSTotal.NIFree)

	for _, g := range report.Groups {
		fmt.Fprintf(out, "cg %4d: ndblk %d ndir %d nbfree %d nifree %d nffree %d\n",
			g.Index, g.Ndblk, g.Sum.NDir, g.Sum.NBFree, g.Sum.NIFree, g.Sum.NFFree)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}
	return nil
}
