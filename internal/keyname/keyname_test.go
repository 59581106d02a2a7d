package keyname

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "project.20240115120000.tgz", Encode("project", ts, false))
	assert.Equal(t, "project.20240115120000.tgz.enc", Encode("project", ts, true))
}

func TestEncode_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	ts := time.Date(2024, 1, 15, 15, 0, 0, 0, loc)

	assert.Equal(t, "project.20240115120000.tgz", Encode("project", ts, false))
}

func TestDecode_Canonical(t *testing.T) {
	k, ok := Decode("project.20240115120000.tgz.enc")
	require.True(t, ok)
	assert.Equal(t, "project", k.Name)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), k.Time)
	assert.True(t, k.Encrypted)
}

func TestDecode_CanonicalNameWithDots(t *testing.T) {
	k, ok := Decode("etc.nginx.conf.20230302080910.tgz")
	require.True(t, ok)
	assert.Equal(t, "etc.nginx.conf", k.Name)
	assert.Equal(t, time.Date(2023, 3, 2, 8, 9, 10, 0, time.UTC), k.Time)
	assert.False(t, k.Encrypted)
}

func TestDecode_Legacy(t *testing.T) {
	k, ok := Decode("project20240115120000.tgz")
	require.True(t, ok)
	assert.Equal(t, "project", k.Name)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), k.Time)
	assert.False(t, k.Encrypted)
}

func TestDecode_LegacyEncrypted(t *testing.T) {
	k, ok := Decode("project20240115120000.tgz.enc")
	require.True(t, ok)
	assert.Equal(t, "project", k.Name)
	assert.True(t, k.Encrypted)
}

func TestDecode_NoMatch(t *testing.T) {
	for _, key := range []string{
		"plain-file.txt",
		"short.123.tgz",
		"20240115120000.tgz", // empty name
		"",
	} {
		_, ok := Decode(key)
		assert.False(t, ok, "key %q must not decode", key)
	}
}

func TestDecode_RoundTripCanonical(t *testing.T) {
	keys := []string{
		"project.20240115120000.tgz",
		"project.20240115120000.tgz.enc",
		"my.dotted.name.19991231235959.tgz",
		"home-dir.20200229010203.tgz.enc",
	}
	for _, key := range keys {
		k, ok := Decode(key)
		require.True(t, ok, key)
		assert.Equal(t, key, Encode(k.Name, k.Time, k.Encrypted), "round trip must reproduce %q", key)
	}
}

func TestDecodeLenient_OpaqueFallback(t *testing.T) {
	k := DecodeLenient("some-random-object")
	assert.Equal(t, "some-random-object", k.Name)
	assert.Equal(t, time.Unix(0, 0).UTC(), k.Time)
	assert.False(t, k.Encrypted)
}

func TestDecodeLenient_PrefersGrammar(t *testing.T) {
	k := DecodeLenient("project.20240115120000.tgz")
	assert.Equal(t, "project", k.Name)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), k.Time)
}
