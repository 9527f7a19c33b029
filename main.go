// ufscat reads files from Solaris and illumos UFS filesystem images.
//
// Usage:
//
//	ufscat -image <image> ls [-l] [-a] [path]
//	ufscat -image <image> cat <path>
//	ufscat -image <image> stat <path>...
//	ufscat -image <image> info [-yaml] [-groups]
//	ufscat -image <image> export [-o file] [path]
//	ufscat -image <image> serve [-socket path] <path>...
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/lvdlvd/ufscat/config"
	"github.com/lvdlvd/ufscat/detect"
	"github.com/lvdlvd/ufscat/fsys/ufs"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// app is passed to every command.
type app struct {
	imagePath string
	conf      *config.Config
	log       logrus.FieldLogger
	stdout    io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	conf, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "ufscat: %v\n", err)
		return int(subcommands.ExitFailure)
	}

	top := flag.NewFlagSet("ufscat", flag.ContinueOnError)
	top.SetOutput(stderr)
	a := &app{conf: conf, stdout: stdout}
	top.StringVar(&a.imagePath, "image", "", "path of the UFS image to read")
	top.StringVar(&conf.LogLevel, "log-level", conf.LogLevel, "log level (debug, info, warn, error)")
	top.StringVar(&conf.LogFormat, "log-format", conf.LogFormat, "log format (text or json)")
	top.BoolVar(&conf.MMap, "mmap", conf.MMap, "map the image instead of reading it into memory")

	cdr := subcommands.NewCommander(top, "ufscat")
	cdr.Output = stdout
	cdr.Error = stderr
	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(cdr.FlagsCommand(), "")
	cdr.Register(cdr.CommandsCommand(), "")
	cdr.Register(&lsCmd{}, "")
	cdr.Register(&catCmd{}, "")
	cdr.Register(&statCmd{}, "")
	cdr.Register(&infoCmd{}, "")
	cdr.Register(&exportCmd{}, "")
	cdr.Register(&serveCmd{}, "")

	if err := top.Parse(args); err != nil {
		return int(subcommands.ExitUsageError)
	}
	log, err := conf.NewLogger(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ufscat: %v\n", err)
		return int(subcommands.ExitUsageError)
	}
	a.log = log

	return int(cdr.Execute(ctx, a))
}

// open detects and opens the image named by -image.
func (a *app) open() (*ufs.FS, error) {
	if a.imagePath == "" {
		return nil, fmt.Errorf("no image given; use -image")
	}

	file, err := os.Open(a.imagePath)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	fsType, err := detect.Detect(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("detecting filesystem: %w", err)
	}
	if !fsType.IsSupported() {
		return nil, fmt.Errorf("unknown or unsupported filesystem: %s", fsType)
	}
	a.log.WithFields(logrus.Fields{"image": a.imagePath, "type": fsType}).Debug("detected filesystem")

	opts := []ufs.Option{ufs.WithLogger(a.log)}
	if !a.conf.MMap {
		opts = append(opts, ufs.WithoutMmap())
	}
	f, err := ufs.OpenImage(a.imagePath, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening filesystem: %w", err)
	}
	return f, nil
}

// fail reports err and returns the failure status.
func (a *app) fail(err error) subcommands.ExitStatus {
	a.log.Error(err)
	return subcommands.ExitFailure
}
