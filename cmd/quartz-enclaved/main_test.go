package main

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/virtengine/quartz/pkg/quartztypes"
)

func TestParseMrEnclave(t *testing.T) {
	me, err := parseMrEnclave("")
	require.NoError(t, err)
	require.Equal(t, quartztypes.MrEnclave{}, me)

	want := quartztypes.MrEnclave{0xAA, 0xBB}
	got, err := parseMrEnclave(hex.EncodeToString(want[:]))
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = parseMrEnclave("not-hex")
	require.Error(t, err)

	_, err = parseMrEnclave("aabb")
	require.Error(t, err)
}

func newTestViper() *viper.Viper {
	v := viper.New()
	v.Set(FlagSkipSessionProof, false)
	v.Set(FlagSessionProofFile, "")
	return v
}

func TestVerifySessionProofSkipped(t *testing.T) {
	v := newTestViper()
	v.Set(FlagSkipSessionProof, true)

	err := verifySessionProof(v, zerolog.Nop(), quartztypes.MrEnclave{})
	require.NoError(t, err)
}

func TestVerifySessionProofRequiresFileByDefault(t *testing.T) {
	v := newTestViper()

	err := verifySessionProof(v, zerolog.Nop(), quartztypes.MrEnclave{})
	require.Error(t, err)
}

func TestVerifySessionProofRejectsUnprovenNonce(t *testing.T) {
	v := newTestViper()
	dir := t.TempDir()
	path := filepath.Join(dir, "proof.json")

	nonce := quartztypes.Nonce{0x1}
	content := `{"nonce":"` + hex.EncodeToString(nonce[:]) + `","app_hash":"` + hex.EncodeToString([]byte("app-hash")) + `","store_proof":"` + hex.EncodeToString([]byte("not a proof")) + `"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	v.Set(FlagSessionProofFile, path)

	err := verifySessionProof(v, zerolog.Nop(), quartztypes.MrEnclave{})
	require.Error(t, err)
}
