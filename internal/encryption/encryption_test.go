package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestNew_RejectsBadKeys(t *testing.T) {
	_, err := New("not-base64!!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = New(short)
	assert.Error(t, err)

	long := base64.StdEncoding.EncodeToString(make([]byte, 64))
	_, err = New(long)
	assert.Error(t, err)
}

func TestEncryptDecryptPAN_RoundTrip(t *testing.T) {
	svc, err := New(testKey(t))
	require.NoError(t, err)

	for _, pan := range []string{"ABCDE1234F", "", "pän-ünïcode-測試"} {
		blob, err := svc.EncryptPAN(pan)
		require.NoError(t, err)

		got, err := svc.DecryptPAN(blob)
		require.NoError(t, err)
		assert.Equal(t, pan, got)
	}
}

func TestEncryptPAN_FreshNoncePerCall(t *testing.T) {
	svc, err := New(testKey(t))
	require.NoError(t, err)

	a, err := svc.EncryptPAN("ABCDE1234F")
	require.NoError(t, err)
	b, err := svc.EncryptPAN("ABCDE1234F")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "same plaintext must never produce the same ciphertext")
}

func TestDecryptPAN_RejectsTampering(t *testing.T) {
	svc, err := New(testKey(t))
	require.NoError(t, err)

	blob, err := svc.EncryptPAN("ABCDE1234F")
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0x01
	_, err = svc.DecryptPAN(blob)
	assert.Error(t, err)
}

func TestDecryptPAN_RejectsShortBlob(t *testing.T) {
	svc, err := New(testKey(t))
	require.NoError(t, err)

	_, err = svc.DecryptPAN([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecryptPAN_WrongKeyFails(t *testing.T) {
	svcA, err := New(testKey(t))
	require.NoError(t, err)
	svcB, err := New(testKey(t))
	require.NoError(t, err)

	blob, err := svcA.EncryptPAN("ABCDE1234F")
	require.NoError(t, err)

	_, err = svcB.DecryptPAN(blob)
	assert.Error(t, err)
}

func TestHashPAN_DeterministicHex(t *testing.T) {
	svc, err := New(testKey(t))
	require.NoError(t, err)

	h1 := svc.HashPAN("ABCDE1234F")
	h2 := svc.HashPAN("ABCDE1234F")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, svc.HashPAN("FGHIJ5678K"))
}

func TestWireRoundTrip(t *testing.T) {
	svc, err := New(testKey(t))
	require.NoError(t, err)

	enc, err := svc.EncryptPANForWire("ABCDE1234F")
	require.NoError(t, err)

	got, err := svc.DecryptPANFromWire(enc)
	require.NoError(t, err)
	assert.Equal(t, "ABCDE1234F", got)

	_, err = svc.DecryptPANFromWire("%%%not-base64%%%")
	assert.Error(t, err)
}
