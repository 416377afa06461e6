//go:build !linkdebug

package protocol

const debugAssertions = false
