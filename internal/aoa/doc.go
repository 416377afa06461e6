// Package aoa is the host side of the link. It switches an Android device into
// accessory mode with the Android Open Accessory handshake, then exchanges frames
// with the accessory over the bulk endpoints of interface 0.
//
// USB access goes through the Bus and Device interfaces; usbfs provides the Linux
// implementation.
package aoa
