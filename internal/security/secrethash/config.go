package secrethash

import (
	"fmt"
	"runtime"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
}

// DefaultConfig returns a baseline tuned for refresh-secret hashing.
//
// Refresh secrets carry 256 bits of entropy, so the cost can sit below
// interactive-password settings while still making an offline attack on a
// leaked table pointless. Parallelism is clamped to [1..4] to keep resource
// usage predictable in containers.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   19 * 1024, // 19 MiB
			Iterations:  2,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

// Validate checks that the configured parameters are usable.
func (c Config) Validate() error {
	p := c.Params
	if p.MemoryKiB < 8*1024 || p.MemoryKiB > 1024*1024 {
		return fmt.Errorf("memory_kib out of range [8192..1048576]: %d", p.MemoryKiB)
	}
	if p.Iterations < 1 || p.Iterations > 20 {
		return fmt.Errorf("iterations out of range [1..20]: %d", p.Iterations)
	}
	if p.Parallelism < 1 {
		return fmt.Errorf("parallelism must be >= 1")
	}
	if p.SaltLength < 8 || p.SaltLength > 64 {
		return fmt.Errorf("salt_length out of range [8..64]: %d", p.SaltLength)
	}
	if p.KeyLength < 16 || p.KeyLength > 64 {
		return fmt.Errorf("key_length out of range [16..64]: %d", p.KeyLength)
	}
	return nil
}
