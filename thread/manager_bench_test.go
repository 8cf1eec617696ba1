package thread

import "testing"

// BenchmarkSpawnJoin mirrors benches/thread_benchmark.rs in the reference
// implementation: spawn/join latency of the thread-management primitive.
func BenchmarkSpawnJoin(b *testing.B) {
	mgr, err := New("bench-mgr", DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, err := Spawn(mgr, func() int { return 0 })
		if err != nil {
			b.Fatal(err)
		}
		if _, err := h.Join(); err != nil {
			b.Fatal(err)
		}
	}
}
