// Package nbd implements a read-only NBD (Network Block Device) server.
// It exposes files found inside a filesystem image as block devices via the
// Linux NBD protocol.
package nbd

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lvdlvd/ufscat/fsys"
)

// NBD protocol constants
const (
	nbdMagic            = uint64(0x4e42444d41474943) // "NBDMAGIC"
	nbdOptionMagic      = uint64(0x49484156454F5054) // "IHAVEOPT"
	nbdReplyMagic       = uint64(0x3e889045565a9)
	nbdRequestMagic     = uint32(0x25609513)
	nbdReplyMagicSimple = uint32(0x67446698)

	nbdFlagFixedNewstyle = uint16(1 << 0)
	nbdFlagNoZeroes      = uint16(1 << 1)
	nbdFlagCNoZeroes     = uint32(1 << 1)

	nbdFlagHasFlags  = uint16(1 << 0)
	nbdFlagReadOnly  = uint16(1 << 1)
	nbdFlagSendFlush = uint16(1 << 2)

	nbdOptExportName = uint32(1)
	nbdOptAbort      = uint32(2)
	nbdOptList       = uint32(3)
	nbdOptGo         = uint32(7)

	nbdRepAck        = uint32(1)
	nbdRepServer     = uint32(2)
	nbdRepInfo       = uint32(3)
	nbdRepErrUnsup   = uint32(0x80000001)
	nbdRepErrUnknown = uint32(0x80000006)

	nbdInfoExport    = uint16(0)
	nbdInfoBlockSize = uint16(3)

	nbdCmdRead  = uint16(0)
	nbdCmdWrite = uint16(1)
	nbdCmdDisc  = uint16(2)
	nbdCmdFlush = uint16(3)
	nbdCmdTrim  = uint16(4)

	nbdErrNone  = uint32(0)
	nbdErrPerm  = uint32(1)
	nbdErrIO    = uint32(5)
	nbdErrInval = uint32(22)

	defaultBlockSize = uint32(4096)
	maxPayload       = uint32(32 * 1024 * 1024)

	exportFlags = nbdFlagHasFlags | nbdFlagReadOnly | nbdFlagSendFlush
)

// Export defines a named block device to expose
type Export struct {
	Name   string      // Export name that clients use to connect
	Reader io.ReaderAt // Data source
	Size   int64       // Size of the export in bytes

	closer io.Closer
}

// Close releases the file backing the export, if any.
func (e *Export) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// FileExport returns an export named after the regular file name in
// filesystem. When the filesystem can map the file to image extents the
// export reads the image directly; otherwise it reads through the open
// file, which must implement io.ReaderAt.
func FileExport(filesystem fsys.FS, name string) (*Export, error) {
	info, err := fs.Stat(filesystem, name)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", name)
	}

	if em, ok := filesystem.(fsys.ExtentMapper); ok {
		if br, ok := filesystem.(interface{ BaseReader() io.ReaderAt }); ok {
			if extents, err := em.FileExtents(name); err == nil {
				return &Export{
					Name:   name,
					Reader: fsys.NewExtentReaderAt(br.BaseReader(), extents, info.Size()),
					Size:   info.Size(),
				}, nil
			}
		}
	}

	f, err := filesystem.Open(name)
	if err != nil {
		return nil, err
	}
	ra, ok := f.(io.ReaderAt)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("%s: file does not support random access", name)
	}
	return &Export{Name: name, Reader: ra, Size: info.Size(), closer: f}, nil
}

// Server represents the NBD server
type Server struct {
	exports   map[string]*Export
	exportsMu sync.RWMutex
	log       logrus.FieldLogger
}

// session represents an active client connection
type session struct {
	server   *Server
	conn     net.Conn
	export   *Export
	noZeroes bool
	log      logrus.FieldLogger
}

// NewServer creates a new NBD server logging to log.
func NewServer(log logrus.FieldLogger) *Server {
	return &Server{
		exports: make(map[string]*Export),
		log:     log,
	}
}

// AddExport registers a new export
func (s *Server) AddExport(exp *Export) error {
	s.exportsMu.Lock()
	defer s.exportsMu.Unlock()

	if _, exists := s.exports[exp.Name]; exists {
		return fmt.Errorf("export %q already exists", exp.Name)
	}

	s.exports[exp.Name] = exp
	return nil
}

// getExport retrieves an export by name
func (s *Server) getExport(name string) *Export {
	s.exportsMu.RLock()
	defer s.exportsMu.RUnlock()
	return s.exports[name]
}

// listExports returns all export names in sorted order
func (s *Server) listExports() []string {
	s.exportsMu.RLock()
	defer s.exportsMu.RUnlock()

	names := make([]string, 0, len(s.exports))
	for name := range s.exports {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ListenAndServe listens on the unix socket socketPath and serves clients
// until ctx is cancelled. A stale socket file is replaced and the socket is
// removed again on return.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0660); err != nil {
		s.log.WithError(err).Warn("failed to chmod socket")
	}

	s.log.WithField("socket", socketPath).Info("listening")
	s.log.Infof("Connect with: sudo nbd-client -N <export-name> -unix %s /dev/nbdX", socketPath)
	return s.Serve(ctx, listener)
}

// Serve accepts connections on l until ctx is cancelled or accepting fails.
// Each connection is handled on its own goroutine; Serve returns once all
// of them have finished. l is closed on return.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	names := s.listExports()
	if len(names) == 0 {
		l.Close()
		return errors.New("no exports defined")
	}
	for _, name := range names {
		exp := s.getExport(name)
		s.log.WithFields(logrus.Fields{"export": exp.Name, "size": exp.Size}).Info("export (read-only)")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		l.Close()
		return nil
	})
	g.Go(func() error {
		for {
			conn, err := l.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			g.Go(func() error {
				s.handleConnection(ctx, conn)
				return nil
			})
		}
	})
	return g.Wait()
}

// handleConnection runs one client session. The connection is closed when
// the session ends or ctx is cancelled.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sess := &session{
		server: s,
		conn:   conn,
		log:    s.log.WithField("remote", conn.RemoteAddr().String()),
	}
	sess.log.Debug("new connection")

	if err := sess.negotiate(); err != nil {
		sess.log.WithError(err).Warn("negotiation failed")
		return
	}

	if err := sess.transmit(); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		sess.log.WithError(err).Warn("transmission error")
	}

	sess.log.Debug("connection closed")
}

func (sess *session) negotiate() error {
	greeting := make([]byte, 18)
	binary.BigEndian.PutUint64(greeting[0:8], nbdMagic)
	binary.BigEndian.PutUint64(greeting[8:16], nbdOptionMagic)
	binary.BigEndian.PutUint16(greeting[16:18], nbdFlagFixedNewstyle|nbdFlagNoZeroes)

	if _, err := sess.conn.Write(greeting); err != nil {
		return fmt.Errorf("failed to send greeting: %w", err)
	}

	clientFlags := make([]byte, 4)
	if _, err := io.ReadFull(sess.conn, clientFlags); err != nil {
		return fmt.Errorf("failed to read client flags: %w", err)
	}

	flags := binary.BigEndian.Uint32(clientFlags)
	sess.noZeroes = (flags & nbdFlagCNoZeroes) != 0

	// Option haggling
	for {
		optHeader := make([]byte, 16)
		if _, err := io.ReadFull(sess.conn, optHeader); err != nil {
			return fmt.Errorf("failed to read option header: %w", err)
		}

		magic := binary.BigEndian.Uint64(optHeader[0:8])
		if magic != nbdOptionMagic {
			return fmt.Errorf("bad option magic: %x", magic)
		}

		optType := binary.BigEndian.Uint32(optHeader[8:12])
		optLen := binary.BigEndian.Uint32(optHeader[12:16])
		if optLen > 4096 {
			return fmt.Errorf("option %d too long: %d bytes", optType, optLen)
		}

		optData := make([]byte, optLen)
		if _, err := io.ReadFull(sess.conn, optData); err != nil {
			return fmt.Errorf("failed to read option data: %w", err)
		}

		done, err := sess.handleOption(optType, optData)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (sess *session) handleOption(optType uint32, optData []byte) (done bool, err error) {
	switch optType {
	case nbdOptExportName:
		exportName := string(optData)
		export := sess.server.getExport(exportName)
		if export == nil {
			return false, fmt.Errorf("unknown export: %s", exportName)
		}
		sess.export = export
		return true, sess.sendOldstyleExportInfo()

	case nbdOptGo:
		exportName := ""
		if len(optData) >= 4 {
			nameLen := binary.BigEndian.Uint32(optData[0:4])
			if nameLen > 0 && uint64(4)+uint64(nameLen) <= uint64(len(optData)) {
				exportName = string(optData[4 : 4+nameLen])
			}
		}

		export := sess.server.getExport(exportName)
		if export == nil && exportName == "" {
			// The first export is the default.
			if exports := sess.server.listExports(); len(exports) > 0 {
				export = sess.server.getExport(exports[0])
			}
		}

		if export == nil {
			return false, sess.sendOptionReply(optType, nbdRepErrUnknown, nil)
		}

		sess.export = export
		sess.log = sess.log.WithField("export", export.Name)
		if err := sess.sendExportInfo(optType); err != nil {
			return false, err
		}
		return true, nil

	case nbdOptList:
		for _, name := range sess.server.listExports() {
			nameData := make([]byte, 4+len(name))
			binary.BigEndian.PutUint32(nameData[0:4], uint32(len(name)))
			copy(nameData[4:], name)
			if err := sess.sendOptionReply(optType, nbdRepServer, nameData); err != nil {
				return false, err
			}
		}
		return false, sess.sendOptionReply(optType, nbdRepAck, nil)

	case nbdOptAbort:
		sess.sendOptionReply(optType, nbdRepAck, nil)
		return false, errors.New("client aborted")

	default:
		return false, sess.sendOptionReply(optType, nbdRepErrUnsup, nil)
	}
}

func (sess *session) sendOptionReply(option, replyType uint32, data []byte) error {
	reply := make([]byte, 20+len(data))
	binary.BigEndian.PutUint64(reply[0:8], nbdReplyMagic)
	binary.BigEndian.PutUint32(reply[8:12], option)
	binary.BigEndian.PutUint32(reply[12:16], replyType)
	binary.BigEndian.PutUint32(reply[16:20], uint32(len(data)))
	copy(reply[20:], data)
	_, err := sess.conn.Write(reply)
	return err
}

func (sess *session) sendExportInfo(option uint32) error {
	exp := sess.export

	infoExport := make([]byte, 12)
	binary.BigEndian.PutUint16(infoExport[0:2], nbdInfoExport)
	binary.BigEndian.PutUint64(infoExport[2:10], uint64(exp.Size))
	binary.BigEndian.PutUint16(infoExport[10:12], exportFlags)
	if err := sess.sendOptionReply(option, nbdRepInfo, infoExport); err != nil {
		return err
	}

	blockInfo := make([]byte, 14)
	binary.BigEndian.PutUint16(blockInfo[0:2], nbdInfoBlockSize)
	binary.BigEndian.PutUint32(blockInfo[2:6], 1)
	binary.BigEndian.PutUint32(blockInfo[6:10], defaultBlockSize)
	binary.BigEndian.PutUint32(blockInfo[10:14], maxPayload)
	if err := sess.sendOptionReply(option, nbdRepInfo, blockInfo); err != nil {
		return err
	}

	return sess.sendOptionReply(option, nbdRepAck, nil)
}

func (sess *session) sendOldstyleExportInfo() error {
	respLen := 10
	if !sess.noZeroes {
		respLen = 134
	}

	resp := make([]byte, respLen)
	binary.BigEndian.PutUint64(resp[0:8], uint64(sess.export.Size))
	binary.BigEndian.PutUint16(resp[8:10], exportFlags)

	_, err := sess.conn.Write(resp)
	return err
}

func (sess *session) transmit() error {
	header := make([]byte, 28)
	sess.log.WithField("size", sess.export.Size).Debug("transmission phase")

	for {
		if _, err := io.ReadFull(sess.conn, header); err != nil {
			return err
		}

		magic := binary.BigEndian.Uint32(header[0:4])
		if magic != nbdRequestMagic {
			return fmt.Errorf("bad request magic: %x", magic)
		}

		cmdType := binary.BigEndian.Uint16(header[6:8])
		handle := header[8:16]
		offset := binary.BigEndian.Uint64(header[16:24])
		length := binary.BigEndian.Uint32(header[24:28])

		var err error
		switch cmdType {
		case nbdCmdRead:
			err = sess.handleRead(handle, offset, length)
		case nbdCmdWrite:
			err = sess.refuseWrite(handle, offset, length)
		case nbdCmdFlush:
			err = sess.sendReply(handle, nbdErrNone, nil)
		case nbdCmdDisc:
			sess.log.Debug("client disconnected")
			return nil
		case nbdCmdTrim:
			err = sess.sendReply(handle, nbdErrPerm, nil)
		default:
			sess.log.WithField("command", cmdType).Warn("unknown command")
			err = sess.sendReply(handle, nbdErrInval, nil)
		}
		if err != nil {
			return err
		}
	}
}

func (sess *session) handleRead(handle []byte, offset uint64, length uint32) error {
	exp := sess.export

	if length > maxPayload || offset+uint64(length) > uint64(exp.Size) {
		return sess.sendReply(handle, nbdErrInval, nil)
	}

	data := make([]byte, length)
	n, err := exp.Reader.ReadAt(data, int64(offset))
	if err != nil && err != io.EOF {
		sess.log.WithError(err).WithField("offset", offset).Error("read failed")
		return sess.sendReply(handle, nbdErrIO, nil)
	}
	clear(data[n:])

	return sess.sendReply(handle, nbdErrNone, data)
}

// refuseWrite consumes the payload of a write request and fails it.
func (sess *session) refuseWrite(handle []byte, offset uint64, length uint32) error {
	if _, err := io.CopyN(io.Discard, sess.conn, int64(length)); err != nil {
		return err
	}
	sess.log.WithField("offset", offset).Debug("write refused on read-only export")
	return sess.sendReply(handle, nbdErrPerm, nil)
}

func (sess *session) sendReply(handle []byte, errCode uint32, data []byte) error {
	reply := make([]byte, 16+len(data))
	binary.BigEndian.PutUint32(reply[0:4], nbdReplyMagicSimple)
	binary.BigEndian.PutUint32(reply[4:8], errCode)
	copy(reply[8:16], handle)
	copy(reply[16:], data)
	_, err := sess.conn.Write(reply)
	return err
}
