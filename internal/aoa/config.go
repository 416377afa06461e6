package aoa

import "time"

const (
	GoogleVendorID = 0x18D1

	// Product ids of a device in accessory mode; the low bits select adb and audio.
	ProductAccessory         = 0x2D00
	ProductAccessoryADB      = 0x2D01
	ProductAccessoryAudioADB = 0x2D05

	DefaultUnconfiguredProductID = 0x4EE7
	DefaultDetectAttempts        = 5
	DefaultDetectInterval        = time.Second
	DefaultTransferTimeout       = time.Second
	// DefaultHeaderRetries bounds size header writes that time out before WriteFrame gives up.
	DefaultHeaderRetries = 30
)

// Identity is the set of strings announced to the accessory during the handshake.
type Identity struct {
	Manufacturer string
	Model        string
	Description  string
	Version      string
	URI          string
	Serial       string
}

// strings returns the identity in handshake index order.
func (id Identity) strings() []string {
	return []string{id.Manufacturer, id.Model, id.Description, id.Version, id.URI, id.Serial}
}

type Config struct {
	// VendorID and ProductID select the device before it is in accessory mode.
	VendorID  uint16
	ProductID uint16
	// AccessoryProductID is accepted as configured in addition to the standard range.
	AccessoryProductID uint16

	Identity        Identity
	DetectAttempts  int
	DetectInterval  time.Duration
	TransferTimeout time.Duration
	HeaderRetries   int
}

func DefaultConfig() Config {
	return Config{
		VendorID:           GoogleVendorID,
		ProductID:          DefaultUnconfiguredProductID,
		AccessoryProductID: ProductAccessoryADB,
		Identity: Identity{
			Manufacturer: "aoalink",
			Model:        "linksend",
			Description:  "frame sender",
			Version:      "1.0",
			URI:          "https://github.com/danmuck/aoalink",
			Serial:       "0000000000000001",
		},
		DetectAttempts:  DefaultDetectAttempts,
		DetectInterval:  DefaultDetectInterval,
		TransferTimeout: DefaultTransferTimeout,
		HeaderRetries:   DefaultHeaderRetries,
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.VendorID == 0 {
		c.VendorID = d.VendorID
	}
	if c.ProductID == 0 {
		c.ProductID = d.ProductID
	}
	if c.DetectAttempts <= 0 {
		c.DetectAttempts = d.DetectAttempts
	}
	if c.DetectInterval <= 0 {
		c.DetectInterval = d.DetectInterval
	}
	if c.TransferTimeout <= 0 {
		c.TransferTimeout = d.TransferTimeout
	}
	if c.HeaderRetries <= 0 {
		c.HeaderRetries = d.HeaderRetries
	}
	return c
}

func (c Config) isAccessory(vendorID, productID uint16) bool {
	if vendorID != GoogleVendorID {
		return false
	}
	if productID >= ProductAccessory && productID <= ProductAccessoryAudioADB {
		return true
	}
	return c.AccessoryProductID != 0 && productID == c.AccessoryProductID
}

func (c Config) isUnconfigured(vendorID, productID uint16) bool {
	return vendorID == c.VendorID && productID == c.ProductID
}
