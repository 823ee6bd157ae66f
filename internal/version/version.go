// ABOUTME: Version constants for the Auralis player
// ABOUTME: Identifies the client in logs and server handshakes
package version

const (
	// Version is the client version string.
	Version = "0.1.0"

	// Product is the client product name.
	Product = "Auralis Player"

	// Manufacturer identifies the project.
	Manufacturer = "Auralis"
)
