//go:build !(linux && (386 || amd64 || arm || arm64 || riscv64 || loong64))

package usbfs

import "github.com/danmuck/aoalink/internal/aoa"

func openDevice(deviceInfo) (aoa.Device, error) {
	return nil, ErrUnsupported
}
