package usbfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/aoalink/internal/aoa"
	"github.com/danmuck/aoalink/internal/testutil/testlog"
)

func writeAttr(t *testing.T, dir, name, value string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// fakeSysfs lays out one hub and one accessory-mode phone with a bulk pair on
// interface 0 and an interrupt endpoint on interface 1.
func fakeSysfs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeAttr(t, filepath.Join(root, "usb1"), "busnum", "1")

	dev := filepath.Join(root, "1-2")
	writeAttr(t, dev, "busnum", "1")
	writeAttr(t, dev, "devnum", "7")
	writeAttr(t, dev, "idVendor", "18d1")
	writeAttr(t, dev, "idProduct", "2d01")

	iface0 := filepath.Join(dev, "1-2:1.0")
	writeAttr(t, iface0, "bInterfaceNumber", "00")
	writeAttr(t, filepath.Join(iface0, "ep_81"), "bEndpointAddress", "81")
	writeAttr(t, filepath.Join(iface0, "ep_81"), "type", "Bulk")
	writeAttr(t, filepath.Join(iface0, "ep_02"), "bEndpointAddress", "02")
	writeAttr(t, filepath.Join(iface0, "ep_02"), "type", "Bulk")

	iface1 := filepath.Join(dev, "1-2:1.1")
	writeAttr(t, iface1, "bInterfaceNumber", "01")
	writeAttr(t, filepath.Join(iface1, "ep_83"), "bEndpointAddress", "83")
	writeAttr(t, filepath.Join(iface1, "ep_83"), "type", "Interrupt")

	// Interface entries also appear at the top level and are skipped.
	writeAttr(t, filepath.Join(root, "1-2:1.0"), "bInterfaceNumber", "00")
	return root
}

func TestScanDevices(t *testing.T) {
	testlog.Start(t)
	root := fakeSysfs(t)
	devices, err := scanDevices(root, "/dev/bus/usb")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected one device, got %d", len(devices))
	}
	d := devices[0]
	if d.vendorID != 0x18D1 || d.productID != 0x2D01 || d.devfsPath != "/dev/bus/usb/001/007" {
		t.Fatalf("unexpected device %+v", d)
	}
}

func TestEndpoints(t *testing.T) {
	testlog.Start(t)
	devices, err := scanDevices(fakeSysfs(t), DevfsUSBPath)
	if err != nil || len(devices) != 1 {
		t.Fatalf("scan: %v", err)
	}
	eps, err := devices[0].endpoints(0)
	if err != nil {
		t.Fatalf("endpoints: %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("expected two endpoints, got %+v", eps)
	}
	var in, out int
	for _, ep := range eps {
		if !ep.Bulk {
			t.Fatalf("expected bulk endpoint, got %+v", ep)
		}
		if ep.In() {
			in++
		} else {
			out++
		}
	}
	if in != 1 || out != 1 {
		t.Fatalf("expected one in and one out, got in=%d out=%d", in, out)
	}

	eps, err = devices[0].endpoints(1)
	if err != nil || len(eps) != 1 || eps[0].Bulk {
		t.Fatalf("unexpected interface 1 endpoints %+v err=%v", eps, err)
	}
	if _, err := devices[0].endpoints(4); err == nil {
		t.Fatalf("expected missing interface error")
	}
}

func TestBusOpenMatches(t *testing.T) {
	testlog.Start(t)
	var opened deviceInfo
	bus := &Bus{
		sysfs: fakeSysfs(t),
		devfs: DevfsUSBPath,
		open: func(d deviceInfo) (aoa.Device, error) {
			opened = d
			return nil, errors.New("no usbfs in tests")
		},
	}

	dev, err := bus.Open(context.Background(), func(vid, pid uint16) bool { return pid == 0x4EE7 })
	if dev != nil || err != nil {
		t.Fatalf("expected no match, got %v %v", dev, err)
	}
	if _, err := bus.Open(context.Background(), func(vid, pid uint16) bool { return vid == aoa.GoogleVendorID }); err == nil {
		t.Fatalf("expected open error to surface")
	}
	if opened.devNum != 7 {
		t.Fatalf("expected device 7 to be opened, got %+v", opened)
	}
}

func TestBusMissingSysfs(t *testing.T) {
	testlog.Start(t)
	bus := &Bus{sysfs: filepath.Join(t.TempDir(), "none"), devfs: DevfsUSBPath, open: openDevice}
	dev, err := bus.Open(context.Background(), func(uint16, uint16) bool { return true })
	if dev != nil || err != nil {
		t.Fatalf("expected empty bus, got %v %v", dev, err)
	}
}
