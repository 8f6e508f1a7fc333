package assets

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/umbra/engine/assets/loaders"
	"github.com/spaghettifunk/umbra/engine/core"
	"github.com/spaghettifunk/umbra/engine/systems"
)

// Compiled shader file names inside the shader directory.
const (
	GeometryVertexShader      = "geometry.vert.spv"
	GeometryFragmentShader    = "geometry.frag.spv"
	LightingVertexShader      = "lighting.vert.spv"
	AmbientFragmentShader     = "ambient.frag.spv"
	DirectionalFragmentShader = "directional.frag.spv"
	PointFragmentShader       = "point.frag.spv"
)

// DefaultReloadDebounce collapses the bursts of writes editors do on save.
const DefaultReloadDebounce = 200 * time.Millisecond

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

type configWatch struct {
	path  string
	out   chan *core.Config
	timer *time.Timer
}

type AssetManager struct {
	root   string
	assets map[string]AssetInfo
	binary loaders.BinaryLoader

	mutex sync.RWMutex

	done      chan struct{}
	wg        sync.WaitGroup
	fsnotify  *fsnotify.Watcher
	isClosed  bool
	debounce  time.Duration
	configs   []*configWatch
	reloadErr chan error
}

func NewAssetManager(root string) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}
	return &AssetManager{
		root:      root,
		assets:    make(map[string]AssetInfo),
		fsnotify:  fsWatch,
		done:      make(chan struct{}),
		debounce:  DefaultReloadDebounce,
		reloadErr: make(chan error, 8),
	}, nil
}

// SetDebounce changes the quiet period before a changed config is reloaded.
func (am *AssetManager) SetDebounce(d time.Duration) {
	am.mutex.Lock()
	am.debounce = d
	am.mutex.Unlock()
}

// Initialize indexes and watches the asset tree.
func (am *AssetManager) Initialize() error {
	if err := am.watchRecursive(am.root); err != nil {
		return err
	}
	am.wg.Add(1)
	go am.start()
	core.LogDebug("watching assets under %s", am.root)
	return nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	return am.fsnotify.Close()
}

// Asset reports what is known about an indexed file, relative to the root.
func (am *AssetManager) Asset(rel string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.Join(am.root, rel)]
	return info, ok
}

// ReloadErrors carries config files that changed but failed to parse.
func (am *AssetManager) ReloadErrors() <-chan error {
	return am.reloadErr
}

// LoadShaderSet reads every deferred pipeline stage from dir in parallel.
func (am *AssetManager) LoadShaderSet(dir string) (systems.ShaderSet, error) {
	var set systems.ShaderSet
	stages := []struct {
		name string
		dst  *[]uint32
	}{
		{GeometryVertexShader, &set.GeometryVertex},
		{GeometryFragmentShader, &set.GeometryFragment},
		{LightingVertexShader, &set.LightingVertex},
		{AmbientFragmentShader, &set.AmbientFragment},
		{DirectionalFragmentShader, &set.DirectionalFragment},
		{PointFragmentShader, &set.PointFragment},
	}

	var g errgroup.Group
	for _, s := range stages {
		s := s
		g.Go(func() error {
			path := filepath.Join(dir, s.name)
			code, err := am.binary.Load(path)
			if err != nil {
				return err
			}
			*s.dst = code
			am.touch(path, AssetTypeShader)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return systems.ShaderSet{}, err
	}
	core.LogDebug("loaded %d shader stages from %s", len(stages), dir)
	return set, nil
}

// WatchConfig delivers the parsed config every time path changes on disk.
// Invalid configs are reported on ReloadErrors and the old one stays active.
func (am *AssetManager) WatchConfig(path string) (<-chan *core.Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	// Editors often replace the file, so the directory is watched.
	if err := am.fsnotify.Add(filepath.Dir(abs)); err != nil {
		return nil, errors.Wrapf(err, "watching %s", path)
	}
	w := &configWatch{path: abs, out: make(chan *core.Config, 1)}
	am.mutex.Lock()
	am.configs = append(am.configs, w)
	am.mutex.Unlock()
	return w.out, nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.mutex.Lock()
			for _, w := range am.configs {
				if w.timer != nil {
					w.timer.Stop()
				}
			}
			am.mutex.Unlock()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("watching new directory %s: %s", e.Name, err)
			}
			return
		}
	}
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		am.touch(e.Name, determineAssetType(e.Name))
	}
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(e.Name)
	}
	if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
		am.scheduleReload(e.Name)
	}
}

func (am *AssetManager) scheduleReload(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	for _, w := range am.configs {
		if w.path != abs {
			continue
		}
		w := w
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timer = time.AfterFunc(am.debounce, func() { am.reload(w) })
	}
}

func (am *AssetManager) reload(w *configWatch) {
	cfg, err := core.LoadConfig(w.path)
	if err != nil {
		core.LogWarn("ignoring config change: %s", err)
		select {
		case am.reloadErr <- err:
		default:
		}
		return
	}
	core.LogInfo("config %s reloaded", w.path)
	// Only the newest config matters to a slow reader.
	select {
	case <-w.out:
	default:
	}
	w.out <- cfg
}

func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.touch(walkPath, determineAssetType(walkPath))
		return nil
	})
}

func (am *AssetManager) touch(path string, assetType AssetType) {
	if assetType == AssetTypeNone {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".spv":
		return AssetTypeShader
	case ".toml":
		return AssetTypeConfig
	default:
		return AssetTypeNone
	}
}
