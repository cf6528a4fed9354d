package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, p := range []string{"Secret1A", "pässwörd-9Ü", strings.Repeat("x", MaxLength)} {
		hash, err := h.Hash(p)
		require.NoError(t, err)
		assert.True(t, h.Verify(p, hash))
		assert.False(t, h.Verify(p+"!", hash))
		assert.False(t, h.Verify("", hash))
	}
}

func TestVerifyRejectsInputPastBcryptBound(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	p := strings.Repeat("Aa1", MaxLength/3)
	require.Len(t, p, MaxLength)

	hash, err := h.Hash(p)
	require.NoError(t, err)

	assert.True(t, h.Verify(p, hash))
	assert.False(t, h.Verify(p+"-suffix", hash))
	assert.False(t, h.Verify(p+"A", hash))
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("Secret1A")
	require.NoError(t, err)
	b, err := h.Hash("Secret1A")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, len(b))
}

func TestHashRejectsBadInput(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash("")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = h.Hash(strings.Repeat("a", MaxLength+1))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	assert.False(t, h.Verify("Secret1A", ""))
	assert.False(t, h.Verify("Secret1A", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("Secret1A", "$2a$04$short"))
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 5, NewHasher(5).cost)
}

func TestPolicyCheck(t *testing.T) {
	p := Policy{MinLength: 8}

	assert.NoError(t, p.Check("Secret1A"))
	assert.ErrorIs(t, p.Check(""), ErrEmpty)
	assert.ErrorIs(t, p.Check("Sh0rt"), ErrTooShort)
	assert.ErrorIs(t, p.Check("alllower1"), ErrWeak)
	assert.ErrorIs(t, p.Check("ALLUPPER1"), ErrWeak)
	assert.ErrorIs(t, p.Check("NoDigitsHere"), ErrWeak)
	assert.ErrorIs(t, p.Check(strings.Repeat("Aa1", 30)), ErrTooLong)
}
