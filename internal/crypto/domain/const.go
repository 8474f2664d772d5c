package domain

// Envelope parameters. Fixed on purpose: none of these are exposed through configuration.
const (
	// KeySize is the size in bytes of every DEK (AES-256).
	KeySize = 32

	// NonceSize is the AES-GCM IV size in bytes (96 bits).
	NonceSize = 12

	// TagSize is the AES-GCM authentication tag size in bytes (128 bits).
	TagSize = 16
)
