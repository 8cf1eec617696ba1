// Package hash provides the sequential hash-chain primitives the PoH
// engine is built on: one-shot digests, prefix mixing, iterated chain
// extension, and constant-time comparison. The digest algorithm is a
// single process-wide choice made once via SetAlgorithm before any engine
// or pool is constructed; the hot path (ExtendChain) reads it without
// locking.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"lukechampine.com/blake3"
)

// Size is the fixed width, in bytes, of every digest produced here.
const Size = 32

// Digest is a fixed-width chain hash.
type Digest [Size]byte

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalJSON encodes the digest as a hex string rather than a byte array.
func (d Digest) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a hex-string digest produced by MarshalJSON.
func (d *Digest) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("hash: invalid digest JSON %q", data)
	}
	raw, err := hex.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("hash: decode digest: %w", err)
	}
	if len(raw) != Size {
		return fmt.Errorf("hash: digest must be %d bytes, got %d", Size, len(raw))
	}
	copy(d[:], raw)
	return nil
}

// Algorithm identifies a supported digest function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

type digestFunc func([]byte) Digest

var active atomic.Pointer[digestFunc]

func init() {
	set(sha256Digest)
}

func set(f digestFunc) {
	active.Store(&f)
}

// SetAlgorithm selects the process-wide digest function. Call it once,
// before constructing any engine, scheduler, or pool — it is not
// synchronized against concurrent Hash/ExtendChain calls by design, since
// the whole point is a lock-free read on the hot path. Unknown algorithm
// names fall back to SHA-256.
func SetAlgorithm(a Algorithm) {
	switch a {
	case BLAKE3:
		set(blake3Digest)
	default:
		set(sha256Digest)
	}
}

func sha256Digest(data []byte) Digest {
	return sha256.Sum256(data)
}

func blake3Digest(data []byte) Digest {
	return blake3.Sum256(data)
}

func current() digestFunc {
	return *active.Load()
}

// Hash returns a one-shot digest of data under the active algorithm.
func Hash(data []byte) Digest {
	return current()(data)
}

// WithPrefix returns the digest of prev||data in a single pass. This is a
// single hash call, never a double hash — callers must not hash data
// before passing it in, and must not hash the result again to "finish"
// the mix.
func WithPrefix(prev Digest, data []byte) Digest {
	buf := make([]byte, Size+len(data))
	copy(buf, prev[:])
	copy(buf[Size:], data)
	return current()(buf)
}

// ExtendChain applies the active digest function n times, starting from
// prev. It is the latency-critical inner loop of the whole system: the
// entire security argument rests on this being strictly sequential.
func ExtendChain(prev Digest, n uint64) Digest {
	f := current()
	h := prev
	var i uint64
	for ; i+8 <= n; i += 8 {
		h = f(h[:])
		h = f(h[:])
		h = f(h[:])
		h = f(h[:])
		h = f(h[:])
		h = f(h[:])
		h = f(h[:])
		h = f(h[:])
	}
	for ; i < n; i++ {
		h = f(h[:])
	}
	return h
}

// ConstantTimeEq reports whether a and b are byte-for-byte equal, without
// short-circuiting on the first difference.
func ConstantTimeEq(a, b Digest) bool {
	var acc byte
	for i := 0; i < Size; i++ {
		acc |= a[i] ^ b[i]
	}
	return acc == 0
}
