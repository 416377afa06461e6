// Package protocol owns the link error taxonomy and its classification.
//
// Ownership boundary:
// - error classes shared by the frame codec, transports and the link session
// - device-absent detection over wrapped I/O errors
//
// Wire primitives live in the frame subpackage.
package protocol
