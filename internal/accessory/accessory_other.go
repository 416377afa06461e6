//go:build !linux

package accessory

import "github.com/danmuck/aoalink/internal/link"

func openAccessory(string) (link.Handle, Identity, error) {
	return nil, Identity{}, ErrUnsupported
}
