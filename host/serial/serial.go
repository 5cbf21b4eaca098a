// Package serial abstracts the serial port the HID link runs over.
package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB1", "COM3")
	Device string

	// Baud rate (the proxy link runs at 921600)
	Baud int

	// Read timeout in milliseconds. Reads return whatever arrived within
	// the timeout; zero bytes means the wait elapsed. 0 = blocking.
	ReadTimeout int
}

// DefaultConfig returns the configuration matching the proxy firmware's
// UART settings.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        921600, // firmware link rate
		ReadTimeout: 100,    // 100ms read timeout
	}
}
