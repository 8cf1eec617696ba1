package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("tick"))
	b := Hash([]byte("tick"))
	assert.Equal(t, a, b)

	c := Hash([]byte("tock"))
	assert.NotEqual(t, a, c)
}

func TestExtendChainMatchesOneAtATime(t *testing.T) {
	seed := Hash([]byte("seed"))

	var stepwise Digest = seed
	for i := 0; i < 37; i++ {
		stepwise = Hash(stepwise[:])
	}

	batched := ExtendChain(seed, 37)
	assert.Equal(t, stepwise, batched)
}

func TestExtendChainZero(t *testing.T) {
	seed := Hash([]byte("seed"))
	require.Equal(t, seed, ExtendChain(seed, 0))
}

func TestExtendChainUnrollBoundary(t *testing.T) {
	seed := Hash([]byte("boundary"))
	for _, n := range []uint64{1, 7, 8, 9, 15, 16, 17, 100} {
		var stepwise Digest = seed
		for i := uint64(0); i < n; i++ {
			stepwise = Hash(stepwise[:])
		}
		assert.Equalf(t, stepwise, ExtendChain(seed, n), "n=%d", n)
	}
}

func TestWithPrefixIsSinglePass(t *testing.T) {
	prev := Hash([]byte("prev"))
	event := []byte("event data")

	mixed := WithPrefix(prev, event)

	expected := Hash(append(append([]byte{}, prev[:]...), event...))
	assert.Equal(t, expected, mixed)

	// Must not equal a double-hash of the event composed some other way.
	doubleHashed := Hash(Hash(event)[:])
	assert.NotEqual(t, doubleHashed, mixed)
}

func TestConstantTimeEq(t *testing.T) {
	a := Hash([]byte("a"))
	b := a
	assert.True(t, ConstantTimeEq(a, b))

	b[0] ^= 0xFF
	assert.False(t, ConstantTimeEq(a, b))
}

func TestSetAlgorithmBlake3ChangesOutput(t *testing.T) {
	SetAlgorithm(SHA256)
	shaOut := Hash([]byte("algo-switch"))

	SetAlgorithm(BLAKE3)
	blakeOut := Hash([]byte("algo-switch"))
	SetAlgorithm(SHA256)

	assert.NotEqual(t, shaOut, blakeOut)
}

func TestSetAlgorithmUnknownFallsBackToSHA256(t *testing.T) {
	SetAlgorithm(SHA256)
	before := Hash([]byte("fallback"))

	SetAlgorithm(Algorithm("not-a-real-algorithm"))
	after := Hash([]byte("fallback"))

	assert.Equal(t, before, after)
}
