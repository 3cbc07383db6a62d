package cryptox

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEncryptor(t *testing.T) *FieldEncryptor {
	t.Helper()
	e, err := NewFieldEncryptor(common.GenerateRandByteArray(KeySize))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey([]byte("secret-password"), []byte("fixed-salt"))
	k2 := DeriveKey([]byte("secret-password"), []byte("fixed-salt"))

	require.Len(t, k1, KeySize)
	assert.True(t, bytes.Equal(k1, k2))
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	k1 := DeriveKey([]byte("secret-password"), []byte("salt-1"))
	k2 := DeriveKey([]byte("secret-password"), []byte("salt-2"))
	assert.False(t, bytes.Equal(k1, k2))
}

func TestMakeVerifier(t *testing.T) {
	v := MakeVerifier([]byte("key"))
	assert.Equal(t, "2c70e12b7a0646f92279f427c7b38e7334d8e5389cff167a1dc30e73f826b683", hex.EncodeToString(v))
	assert.NotEqual(t, v, MakeVerifier([]byte("other")))
}

func TestNewFieldEncryptor_InvalidKey(t *testing.T) {
	_, err := NewFieldEncryptor([]byte("short"))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewFieldEncryptor_CopiesKey(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	e, err := NewFieldEncryptor(key)
	require.NoError(t, err)

	f, err := e.Encrypt("value")
	require.NoError(t, err)

	common.WipeByteArray(key)

	var got string
	require.NoError(t, e.Decrypt(f, &got))
	assert.Equal(t, "value", got)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	e := newTestEncryptor(t)

	type verdict struct {
		Score    int      `json:"score"`
		Triggers []string `json:"triggers"`
	}

	t.Run("string", func(t *testing.T) {
		f, err := e.Encrypt("lactose intolerant")
		require.NoError(t, err)
		var got string
		require.NoError(t, e.Decrypt(f, &got))
		assert.Equal(t, "lactose intolerant", got)
	})

	t.Run("struct", func(t *testing.T) {
		in := verdict{Score: 42, Triggers: []string{"fodmap", "gluten"}}
		f, err := e.Encrypt(in)
		require.NoError(t, err)
		var got verdict
		require.NoError(t, e.Decrypt(f, &got))
		assert.Equal(t, in, got)
	})

	t.Run("empty string", func(t *testing.T) {
		f, err := e.Encrypt("")
		require.NoError(t, err)
		var got string
		require.NoError(t, e.Decrypt(f, &got))
		assert.Equal(t, "", got)
	})
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	e := newTestEncryptor(t)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		f, err := e.Encrypt("same value")
		require.NoError(t, err)
		require.Len(t, f.IV, nonceSize)
		_, dup := seen[string(f.IV)]
		require.False(t, dup, "nonce reused")
		seen[string(f.IV)] = struct{}{}
	}

	a, _ := e.Encrypt("same value")
	b, _ := e.Encrypt("same value")
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecrypt_Failures(t *testing.T) {
	e := newTestEncryptor(t)
	f, err := e.Encrypt("secret")
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		other := newTestEncryptor(t)
		var got string
		err := other.Decrypt(f, &got)
		require.ErrorIs(t, err, ErrDecryptFailed)
		var de *DecryptionError
		require.True(t, errors.As(err, &de))
		assert.Empty(t, got)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		bad := f
		bad.Ciphertext = append([]byte(nil), f.Ciphertext...)
		bad.Ciphertext[0] ^= 0xFF
		var got string
		require.ErrorIs(t, e.Decrypt(bad, &got), ErrDecryptFailed)
	})

	t.Run("short nonce", func(t *testing.T) {
		bad := f
		bad.IV = bad.IV[:4]
		var got string
		require.ErrorIs(t, e.Decrypt(bad, &got), ErrDecryptFailed)
	})
}

func TestFieldEncryptor_Close(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	e, err := NewFieldEncryptor(key)
	require.NoError(t, err)

	f, err := e.Encrypt("value")
	require.NoError(t, err)

	held := e.key
	e.Close()
	e.Close()

	assert.Equal(t, make([]byte, KeySize), held)

	_, err = e.Encrypt("value")
	require.ErrorIs(t, err, ErrClosed)

	var got string
	err = e.Decrypt(f, &got)
	require.ErrorIs(t, err, ErrDecryptFailed)
	require.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, got)
}

func TestFieldEncryptor_RedactsKey(t *testing.T) {
	key := bytes.Repeat([]byte{0xAB}, KeySize)
	e, err := NewFieldEncryptor(key)
	require.NoError(t, err)

	for _, s := range []string{fmt.Sprint(e), fmt.Sprintf("%v", e), fmt.Sprintf("%s", e)} {
		assert.NotContains(t, s, "ab")
		assert.NotContains(t, s, "171")
	}

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("encryptor", "enc", e)
	assert.Contains(t, buf.String(), "[redacted]")
	assert.False(t, strings.Contains(buf.String(), hex.EncodeToString(key)))
}

func TestEncryptedField_JSON(t *testing.T) {
	e := newTestEncryptor(t)
	f, err := e.Encrypt(map[string]any{"a": 1})
	require.NoError(t, err)

	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"$enc":"v1"`)

	var back EncryptedField
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, f.Ciphertext, back.Ciphertext)
	assert.Equal(t, f.IV, back.IV)
	assert.True(t, f.EncryptedAt.Equal(back.EncryptedAt))

	require.Error(t, json.Unmarshal([]byte(`{"$enc":"v9","ct":"","iv":""}`), &back))
}
