// Package usbfs implements aoa.Bus and aoa.Device on Linux: devices are discovered
// through sysfs and driven through the usbfs nodes under /dev/bus/usb.
package usbfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/danmuck/aoalink/internal/aoa"
)

const (
	SysfsUSBPath = "/sys/bus/usb/devices"
	DevfsUSBPath = "/dev/bus/usb"
)

type deviceInfo struct {
	sysfsPath string
	devfsPath string
	busNum    uint8
	devNum    uint8
	vendorID  uint16
	productID uint16
}

// scanDevices lists USB devices under root, skipping root hubs and interface entries.
func scanDevices(root, devfs string) ([]deviceInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var devices []deviceInfo
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}
		info, err := parseDevice(filepath.Join(root, name), devfs)
		if err != nil {
			continue
		}
		devices = append(devices, info)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].busNum != devices[j].busNum {
			return devices[i].busNum < devices[j].busNum
		}
		return devices[i].devNum < devices[j].devNum
	})
	return devices, nil
}

func parseDevice(path, devfs string) (deviceInfo, error) {
	info := deviceInfo{sysfsPath: path}
	var err error
	if info.busNum, err = readDecUint8(filepath.Join(path, "busnum")); err != nil {
		return info, err
	}
	if info.devNum, err = readDecUint8(filepath.Join(path, "devnum")); err != nil {
		return info, err
	}
	if info.vendorID, err = readHexUint16(filepath.Join(path, "idVendor")); err != nil {
		return info, err
	}
	if info.productID, err = readHexUint16(filepath.Join(path, "idProduct")); err != nil {
		return info, err
	}
	info.devfsPath = fmt.Sprintf("%s/%03d/%03d", devfs, info.busNum, info.devNum)
	return info, nil
}

// endpoints reads the endpoints of interface iface in the active configuration.
// Interface directories are named <device>:<config>.<interface>.
func (d deviceInfo) endpoints(iface uint8) ([]aoa.Endpoint, error) {
	base := filepath.Base(d.sysfsPath)
	entries, err := os.ReadDir(d.sysfsPath)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, base+":") {
			continue
		}
		ifacePath := filepath.Join(d.sysfsPath, name)
		num, err := readHexUint8(filepath.Join(ifacePath, "bInterfaceNumber"))
		if err != nil || num != iface {
			continue
		}
		return readEndpoints(ifacePath)
	}
	return nil, fmt.Errorf("usbfs: interface %d not found under %s", iface, d.sysfsPath)
}

func readEndpoints(ifacePath string) ([]aoa.Endpoint, error) {
	entries, err := os.ReadDir(ifacePath)
	if err != nil {
		return nil, err
	}
	var eps []aoa.Endpoint
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "ep_") {
			continue
		}
		epPath := filepath.Join(ifacePath, entry.Name())
		addr, err := readHexUint8(filepath.Join(epPath, "bEndpointAddress"))
		if err != nil {
			continue
		}
		typ, _ := readString(filepath.Join(epPath, "type"))
		eps = append(eps, aoa.Endpoint{Address: addr, Bulk: typ == "Bulk"})
	}
	return eps, nil
}

func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readDecUint8(path string) (uint8, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), err
}

func readHexUint8(path string) (uint8, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 8)
	return uint8(v), err
}

func readHexUint16(path string) (uint16, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	return uint16(v), err
}
