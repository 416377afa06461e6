//go:build linux && (386 || amd64 || arm || arm64 || riscv64 || loong64)

package usbfs

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/danmuck/aoalink/internal/aoa"
)

// struct usbdevfs_ctrltransfer
type ctrlTransfer struct {
	requestType uint8
	request     uint8
	value       uint16
	index       uint16
	length      uint16
	timeout     uint32
	data        uintptr
}

// struct usbdevfs_bulktransfer
type bulkTransfer struct {
	endpoint uint32
	length   uint32
	timeout  uint32
	data     uintptr
}

// asm-generic _IOC layout.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	usbdevfsType = 'U'
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

var (
	ioctlControl          = ioc(iocRead|iocWrite, usbdevfsType, 0, unsafe.Sizeof(ctrlTransfer{}))
	ioctlBulk             = ioc(iocRead|iocWrite, usbdevfsType, 2, unsafe.Sizeof(bulkTransfer{}))
	ioctlClaimInterface   = ioc(iocRead, usbdevfsType, 15, unsafe.Sizeof(uint32(0)))
	ioctlReleaseInterface = ioc(iocRead, usbdevfsType, 16, unsafe.Sizeof(uint32(0)))
	ioctlReset            = ioc(iocNone, usbdevfsType, 20, 0)
)

type device struct {
	info deviceInfo

	mu sync.Mutex
	fd int
}

var _ aoa.Device = (*device)(nil)

func openDevice(info deviceInfo) (aoa.Device, error) {
	fd, err := unix.Open(info.devfsPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &device{info: info, fd: fd}, nil
}

func (d *device) VendorID() uint16  { return d.info.vendorID }
func (d *device) ProductID() uint16 { return d.info.productID }

func (d *device) Control(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	ctrl := ctrlTransfer{
		requestType: requestType,
		request:     request,
		value:       value,
		index:       index,
		length:      uint16(len(data)),
		timeout:     millis(timeout),
	}
	if len(data) > 0 {
		ctrl.data = uintptr(unsafe.Pointer(&data[0]))
	}
	n, err := d.ioctl(ioctlControl, uintptr(unsafe.Pointer(&ctrl)))
	runtime.KeepAlive(data)
	if err != nil {
		return 0, fmt.Errorf("usbfs: control req=%d: %w", request, err)
	}
	return n, nil
}

func (d *device) Bulk(endpoint uint8, data []byte, timeout time.Duration) (int, error) {
	bulk := bulkTransfer{
		endpoint: uint32(endpoint),
		length:   uint32(len(data)),
		timeout:  millis(timeout),
	}
	if len(data) > 0 {
		bulk.data = uintptr(unsafe.Pointer(&data[0]))
	}
	n, err := d.ioctl(ioctlBulk, uintptr(unsafe.Pointer(&bulk)))
	runtime.KeepAlive(data)
	if err != nil {
		return 0, fmt.Errorf("usbfs: bulk ep=%#02x: %w", endpoint, err)
	}
	return n, nil
}

func (d *device) Endpoints(iface uint8) ([]aoa.Endpoint, error) {
	return d.info.endpoints(iface)
}

func (d *device) Claim(iface uint8) error {
	n := uint32(iface)
	_, err := d.ioctl(ioctlClaimInterface, uintptr(unsafe.Pointer(&n)))
	return err
}

func (d *device) Release(iface uint8) error {
	n := uint32(iface)
	_, err := d.ioctl(ioctlReleaseInterface, uintptr(unsafe.Pointer(&n)))
	return err
}

func (d *device) Reset() error {
	_, err := d.ioctl(ioctlReset, 0)
	return err
}

func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func (d *device) ioctl(req, arg uintptr) (int, error) {
	d.mu.Lock()
	fd := d.fd
	d.mu.Unlock()
	if fd < 0 {
		return 0, unix.EBADF
	}
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return int(r), errno
	}
	return int(r), nil
}

func millis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}
