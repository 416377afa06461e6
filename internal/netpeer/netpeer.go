// Package netpeer carries the link over network byte streams. It is used for
// development links and for adb-forwarded sockets where no accessory node exists.
//
// Connection loss (EOF, reset, broken pipe) is reported as protocol.ErrDeviceAbsent
// so a session ends exactly as it would on a physical unplug.
package netpeer

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/danmuck/aoalink/internal/link"
	"github.com/danmuck/aoalink/internal/protocol"
)

func mapErr(err error) error {
	if err == nil || errors.Is(err, protocol.ErrDeviceAbsent) {
		return err
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return protocol.DeviceAbsent(err)
	}
	return err
}

// connEnd is one direction of a net.Conn. Close shuts down only that half when the
// connection supports it.
type connEnd struct {
	conn      net.Conn
	closeHalf func() error
}

func (e *connEnd) Read(p []byte) (int, error) {
	n, err := e.conn.Read(p)
	return n, mapErr(err)
}

func (e *connEnd) Write(p []byte) (int, error) {
	n, err := e.conn.Write(p)
	return n, mapErr(err)
}

func (e *connEnd) Close() error {
	if e.closeHalf == nil {
		return nil
	}
	return e.closeHalf()
}

func newConnHandle(conn net.Conn) link.Handle {
	r := &connEnd{conn: conn}
	w := &connEnd{conn: conn}
	if c, ok := conn.(interface{ CloseRead() error }); ok {
		r.closeHalf = c.CloseRead
	}
	if c, ok := conn.(interface{ CloseWrite() error }); ok {
		w.closeHalf = c.CloseWrite
	}
	return link.NewHandle(r, w, conn)
}
