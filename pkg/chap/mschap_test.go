package chap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChallengeResponseIsDeterministic(t *testing.T) {
	t.Parallel()

	challenge := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	hash := [16]byte{9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24}

	a := ChallengeResponse(challenge, hash)
	b := ChallengeResponse(challenge, hash)
	assert.Equal(t, a, b)
}

func TestChallengeResponseVariesWithChallenge(t *testing.T) {
	t.Parallel()

	hash := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	a := ChallengeResponse([8]byte{1}, hash)
	b := ChallengeResponse([8]byte{2}, hash)
	assert.NotEqual(t, a, b)
}

func TestExpandDESKeySetsOddParity(t *testing.T) {
	t.Parallel()

	key := expandDESKey([7]byte{0, 0, 0, 0, 0, 0, 0})
	for _, b := range key {
		parity := byte(0)
		for i := 0; i < 8; i++ {
			parity ^= (b >> i) & 1
		}
		assert.Equal(t, byte(1), parity, "byte %08b must have odd parity", b)
	}
}
