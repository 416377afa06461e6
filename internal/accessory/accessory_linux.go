//go:build linux

package accessory

import (
	"bytes"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/danmuck/aoalink/internal/link"
	"github.com/danmuck/aoalink/internal/logging"
)

// _IOW('M', n, char[256]) requests of the accessory gadget driver.
const (
	accessoryStringLen = 256

	ioctlGetManufacturer = 0x41004D01
	ioctlGetModel        = 0x41004D02
	ioctlGetDescription  = 0x41004D03
	ioctlGetVersion      = 0x41004D04
	ioctlGetURI          = 0x41004D05
	ioctlGetSerial       = 0x41004D06
)

func openAccessory(path string) (link.Handle, Identity, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, Identity{}, fmt.Errorf("accessory: open %s: %w", path, err)
	}

	id, err := readIdentity(fd)
	if err != nil {
		logging.Debugf("accessory.openAccessory identity unavailable path=%s err=%v", path, err)
	}

	wfd, err := unix.Dup(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, Identity{}, fmt.Errorf("accessory: dup %s: %w", path, err)
	}
	unix.CloseOnExec(wfd)

	r := os.NewFile(uintptr(fd), path)
	w := os.NewFile(uintptr(wfd), path)
	return link.NewHandle(r, w, nil), id, nil
}

func readIdentity(fd int) (Identity, error) {
	var id Identity
	fields := []struct {
		req uintptr
		dst *string
	}{
		{ioctlGetManufacturer, &id.Manufacturer},
		{ioctlGetModel, &id.Model},
		{ioctlGetDescription, &id.Description},
		{ioctlGetVersion, &id.Version},
		{ioctlGetURI, &id.URI},
		{ioctlGetSerial, &id.Serial},
	}
	for _, f := range fields {
		s, err := ioctlString(fd, f.req)
		if err != nil {
			return Identity{}, err
		}
		*f.dst = s
	}
	return id, nil
}

func ioctlString(fd int, req uintptr) (string, error) {
	var buf [accessoryStringLen]byte
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", errno
	}
	if i := bytes.IndexByte(buf[:], 0); i >= 0 {
		return string(buf[:i]), nil
	}
	return string(buf[:]), nil
}
