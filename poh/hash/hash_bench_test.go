package hash

import "testing"

// BenchmarkExtendChain mirrors the reference implementation's
// poh/bench/operations.rs throughput benchmark: sequential hashing at the
// default HashesPerTick width is the system's critical path.
func BenchmarkExtendChain(b *testing.B) {
	seed := Hash([]byte("bench-seed"))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seed = ExtendChain(seed, 12_500)
	}
}

func BenchmarkHash(b *testing.B) {
	data := []byte("benchmark payload")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Hash(data)
	}
}
