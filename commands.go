package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/google/subcommands"

	"github.com/lvdlvd/ufscat/cmd"
	"github.com/lvdlvd/ufscat/nbd"
)

// lsCmd implements subcommands.Command for the "ls" command.
type lsCmd struct {
	opts cmd.LsOptions
}

func (*lsCmd) Name() string     { return "ls" }
func (*lsCmd) Synopsis() string { return "list a directory" }
func (*lsCmd) Usage() string    { return "ls [-l] [-a] [path]\n" }

func (c *lsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.opts.Long, "l", false, "use long listing format")
	f.BoolVar(&c.opts.All, "a", false, "show entries starting with .")
}

func (c *lsCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a := args[0].(*app)
	filesystem, err := a.open()
	if err != nil {
		return a.fail(err)
	}
	defer filesystem.Close()

	fsPath := "."
	if f.NArg() > 0 {
		fsPath = f.Arg(0)
	}
	if err := cmd.Ls(filesystem, fsPath, a.stdout, c.opts); err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}

// catCmd implements subcommands.Command for the "cat" command.
type catCmd struct{}

func (*catCmd) Name() string           { return "cat" }
func (*catCmd) Synopsis() string       { return "copy a file to standard output" }
func (*catCmd) Usage() string          { return "cat <path>\n" }
func (*catCmd) SetFlags(*flag.FlagSet) {}

func (*catCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a := args[0].(*app)
	filesystem, err := a.open()
	if err != nil {
		return a.fail(err)
	}
	defer filesystem.Close()

	if err := cmd.Cat(filesystem, f.Arg(0), a.stdout); err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}

// statCmd implements subcommands.Command for the "stat" command.
type statCmd struct{}

func (*statCmd) Name() string           { return "stat" }
func (*statCmd) Synopsis() string       { return "show inode details" }
func (*statCmd) Usage() string          { return "stat <path>...\n" }
func (*statCmd) SetFlags(*flag.FlagSet) {}

func (*statCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a := args[0].(*app)
	filesystem, err := a.open()
	if err != nil {
		return a.fail(err)
	}
	defer filesystem.Close()

	if err := cmd.Stat(filesystem, f.Args(), a.stdout); err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}

// infoCmd implements subcommands.Command for the "info" command.
type infoCmd struct {
	opts cmd.InfoOptions
}

func (*infoCmd) Name() string     { return "info" }
func (*infoCmd) Synopsis() string { return "describe the filesystem" }
func (*infoCmd) Usage() string    { return "info [-yaml] [-groups]\n" }

func (c *infoCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.opts.YAML, "yaml", false, "print every decoded field as YAML")
	f.BoolVar(&c.opts.Groups, "groups", false, "include the cylinder group headers")
}

func (c *infoCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a := args[0].(*app)
	filesystem, err := a.open()
	if err != nil {
		return a.fail(err)
	}
	defer filesystem.Close()

	if err := cmd.Info(filesystem, a.stdout, c.opts); err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}

// exportCmd implements subcommands.Command for the "export" command.
type exportCmd struct {
	output string
	wrap   int
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a subtree as a txtar archive" }
func (*exportCmd) Usage() string    { return "export [-o file] [-wrap n] [path]\n" }

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "write the archive to file instead of standard output")
	f.IntVar(&c.wrap, "wrap", 0, "line width of base64 content (default from config)")
}

func (c *exportCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a := args[0].(*app)
	filesystem, err := a.open()
	if err != nil {
		return a.fail(err)
	}
	defer filesystem.Close()

	fsPath := "."
	if f.NArg() > 0 {
		fsPath = f.Arg(0)
	}
	wrap := c.wrap
	if wrap <= 0 {
		wrap = a.conf.ExportWrap
	}

	out := a.stdout
	if c.output != "" {
		file, err := os.Create(c.output)
		if err != nil {
			return a.fail(err)
		}
		defer file.Close()
		out = file
	}
	if err := cmd.Export(filesystem, fsPath, out, cmd.ExportOptions{Wrap: wrap}); err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}

// serveCmd implements subcommands.Command for the "serve" command.
type serveCmd struct {
	socket string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "export files from the image over NBD" }
func (*serveCmd) Usage() string {
	return `serve [-socket path] <path>...

Each path names a regular file in the image; it is exported read-only under
its own name.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.socket, "socket", "", "unix socket to listen on (default from config)")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a := args[0].(*app)
	filesystem, err := a.open()
	if err != nil {
		return a.fail(err)
	}
	defer filesystem.Close()

	server := nbd.NewServer(a.log.WithField("component", "nbd"))
	for _, arg := range f.Args() {
		name := strings.TrimPrefix(path.Clean("/"+arg), "/")
		exp, err := nbd.FileExport(filesystem, name)
		if err != nil {
			return a.fail(fmt.Errorf("export %s: %w", name, err))
		}
		defer exp.Close()
		if err := server.AddExport(exp); err != nil {
			return a.fail(err)
		}
	}

	socket := c.socket
	if socket == "" {
		socket = a.conf.NBDSocket
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.ListenAndServe(ctx, socket); err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}
