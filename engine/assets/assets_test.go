package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/umbra/engine/assets/loaders"
	"github.com/spaghettifunk/umbra/engine/core"
)

func writeModule(t *testing.T, path string, words ...uint32) {
	t.Helper()
	buf := make([]byte, 4*(len(words)+1))
	binary.LittleEndian.PutUint32(buf, loaders.SPIRVMagic)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*(i+1):], w)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newManager(t *testing.T, root string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = am.Shutdown() })
	return am
}

func TestLoadShaderSet(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		GeometryVertexShader, GeometryFragmentShader, LightingVertexShader,
		AmbientFragmentShader, DirectionalFragmentShader, PointFragmentShader,
	}
	for i, n := range names {
		writeModule(t, filepath.Join(dir, n), uint32(i))
	}
	am := newManager(t, dir)

	set, err := am.LoadShaderSet(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := [][]uint32{
		set.GeometryVertex, set.GeometryFragment, set.LightingVertex,
		set.AmbientFragment, set.DirectionalFragment, set.PointFragment,
	}
	for i, code := range got {
		if len(code) != 2 || code[0] != loaders.SPIRVMagic || code[1] != uint32(i) {
			t.Errorf("%s = %v", names[i], code)
		}
	}
	if info, ok := am.Asset(PointFragmentShader); !ok || info.Type != AssetTypeShader {
		t.Fatalf("shader not indexed: %+v", info)
	}
}

func TestLoadShaderSetMissingStage(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, filepath.Join(dir, GeometryVertexShader))
	am := newManager(t, dir)
	if _, err := am.LoadShaderSet(dir); err == nil {
		t.Fatal("expected error for missing stages")
	}
}

func TestBinaryLoaderRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	tests := map[string][]byte{
		"short":     {1, 2, 3},
		"unaligned": {0x03, 0x02, 0x23, 0x07, 0},
		"magic":     {1, 2, 3, 4},
	}
	var l loaders.BinaryLoader
	for name, data := range tests {
		path := filepath.Join(dir, name+".spv")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := l.Load(path); !errors.Is(err, loaders.ErrInvalidSPIRV) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestWatchConfigReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.toml")
	if err := os.WriteFile(path, []byte("[application]\nname = \"before\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	am := newManager(t, dir)
	am.SetDebounce(10 * time.Millisecond)
	configs, err := am.WatchConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("[application]\nname = \"after\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-configs:
		if cfg.Application.Name != "after" {
			t.Fatalf("name = %q", cfg.Application.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}

	if err := os.WriteFile(path, []byte("[application]\nwidth = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-am.ReloadErrors():
		if !errors.Is(err, core.ErrInvalidConfig) {
			t.Fatalf("err = %v", err)
		}
	case cfg := <-configs:
		t.Fatalf("invalid config delivered: %+v", cfg.Application)
	case <-time.After(5 * time.Second):
		t.Fatal("invalid config not reported")
	}
}

func TestDetermineAssetType(t *testing.T) {
	for path, want := range map[string]AssetType{
		"a/b/point.frag.spv": AssetTypeShader,
		"engine.toml":        AssetTypeConfig,
		"readme.md":          AssetTypeNone,
	} {
		if got := determineAssetType(path); got != want {
			t.Errorf("%s: %s, want %s", path, got, want)
		}
	}
}
