package usbfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/danmuck/aoalink/internal/aoa"
	"github.com/danmuck/aoalink/internal/logging"
)

// ErrUnsupported is returned when opening devices on a platform without usbfs support.
var ErrUnsupported = errors.New("usbfs: not supported on this platform")

var _ aoa.Bus = (*Bus)(nil)

// Bus scans sysfs on each Open, so newly enumerated devices are seen immediately.
type Bus struct {
	sysfs string
	devfs string
	open  func(deviceInfo) (aoa.Device, error)
}

func NewBus() *Bus {
	return &Bus{sysfs: SysfsUSBPath, devfs: DevfsUSBPath, open: openDevice}
}

func (b *Bus) Open(ctx context.Context, match func(vendorID, productID uint16) bool) (aoa.Device, error) {
	devices, err := scanDevices(b.sysfs, b.devfs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("usbfs: scan %s: %w", b.sysfs, err)
	}
	for _, d := range devices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !match(d.vendorID, d.productID) {
			continue
		}
		dev, err := b.open(d)
		if err != nil {
			return nil, fmt.Errorf("usbfs: open %s: %w", d.devfsPath, err)
		}
		logging.Debugf("usbfs.Bus.Open opened path=%s vid=%04x pid=%04x", d.devfsPath, d.vendorID, d.productID)
		return dev, nil
	}
	return nil, nil
}
