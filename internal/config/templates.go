package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "linkd":
		return linkdTemplate, nil
	case "linksend":
		return linksendTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as the given kind and reports any error.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "linkd":
		_, err := LoadLinkdConfig(path)
		return err
	case "linksend":
		_, err := LoadLinksendConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const linkdTemplate = `# accessory | tcp | ws
provider = "accessory"
accessory_path = "/dev/usb_accessory"
# peer_address = "127.0.0.1:7200"      # tcp
# peer_address = "ws://127.0.0.1:7200/" # ws
# ws_origin = "http://127.0.0.1/"

connect_cooldown = "100ms"
read_cooldown = "100ms"
max_frame_size = 16777215
max_stalls = 16
rearm = true

output_dir = "frames"
metrics_addr = "127.0.0.1:9310"
shutdown_grace = "2s"
`

const linksendTemplate = `vendor_id = 0x18d1
product_id = 0x4ee7
accessory_product_id = 0x2d01

manufacturer = "aoalink"
model = "linksend"
description = "frame sender"
version = "1.0"
uri = "https://github.com/danmuck/aoalink"
serial = "0000000000000001"

detect_attempts = 5
detect_interval = "1s"
transfer_timeout = "1s"
header_retries = 30

# listen_address = "127.0.0.1:7200"
`
