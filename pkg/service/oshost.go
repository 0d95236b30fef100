package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"

	"github.com/ritzau/projectd/pkg/project"
)

// OSHost is the production SystemHost: real file system, xxh3 content
// hashing, and an in-process plugin registry. Plugins are trusted in-process
// extenders; programs embedding the service register factories by name
// before projects load.
type OSHost struct {
	plugins map[string]project.PluginModuleFactory
}

// NewOSHost creates a host with an empty plugin registry.
func NewOSHost() *OSHost {
	return &OSHost{plugins: make(map[string]project.PluginModuleFactory)}
}

// RegisterPlugin installs a plugin factory under a module name.
func (h *OSHost) RegisterPlugin(name string, factory project.PluginModuleFactory) {
	h.plugins[name] = factory
}

func (h *OSHost) ResolvePath(path string) string {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return resolved
}

func (h *OSHost) GetExecutingFilePath() string {
	executable, err := os.Executable()
	if err != nil {
		return ""
	}
	return executable
}

func (h *OSHost) CreateHash(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

func (h *OSHost) FileExists(fileName string) bool {
	stat, err := os.Stat(fileName)
	return err == nil && !stat.IsDir()
}

func (h *OSHost) ReadFile(fileName string) (string, bool) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (h *OSHost) Require(initialDir, moduleName string) (project.PluginModuleFactory, error) {
	if factory, ok := h.plugins[moduleName]; ok {
		return factory, nil
	}
	return nil, fmt.Errorf("plugin module %q is not registered", moduleName)
}
