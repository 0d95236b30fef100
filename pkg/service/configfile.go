package service

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/project"
)

// configFileData is the raw on-disk shape of a project config file.
type configFileData struct {
	CompilerOptions struct {
		AllowJs          bool                `koanf:"allowJs"`
		CheckJs          bool                `koanf:"checkJs"`
		NoEmit           bool                `koanf:"noEmit"`
		OutDir           string              `koanf:"outDir"`
		Module           string              `koanf:"module"`
		ModuleResolution string              `koanf:"moduleResolution"`
		BaseURL          string              `koanf:"baseUrl"`
		Paths            map[string][]string `koanf:"paths"`
		RootDirs         []string            `koanf:"rootDirs"`
		TypeRoots        []string            `koanf:"typeRoots"`
		Types            []string            `koanf:"types"`
		Plugins          []struct {
			Name string `koanf:"name"`
		} `koanf:"plugins"`
	} `koanf:"compilerOptions"`
	Files         []string `koanf:"files"`
	Include       []string `koanf:"include"`
	Exclude       []string `koanf:"exclude"`
	CompileOnSave bool     `koanf:"compileOnSave"`
}

// ConfigSnapshot is one parsed config file: options, the enumerated root
// set, the wildcard directories its include globs cover, and plugin imports.
type ConfigSnapshot struct {
	ConfigFileName string
	Options        *compiler.Options
	FileNames      []string
	HasExplicitFiles bool
	CompileOnSave  bool
	Plugins        []project.PluginImport

	// WildcardDirectories maps directory -> recursive flag.
	WildcardDirectories map[string]bool
}

// LoadConfigFile parses a config file and enumerates its root set.
func LoadConfigFile(configFileName string) (*ConfigSnapshot, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(configFileName), koanfjson.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFileName, err)
	}

	var data configFileData
	if err := k.Unmarshal("", &data); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configFileName, err)
	}

	options := &compiler.Options{
		AllowJs:        data.CompilerOptions.AllowJs,
		CheckJs:        data.CompilerOptions.CheckJs,
		NoEmit:         data.CompilerOptions.NoEmit,
		OutDir:         data.CompilerOptions.OutDir,
		Module:         data.CompilerOptions.Module,
		BaseURL:        data.CompilerOptions.BaseURL,
		Paths:          data.CompilerOptions.Paths,
		RootDirs:       data.CompilerOptions.RootDirs,
		TypeRoots:      data.CompilerOptions.TypeRoots,
		Types:          data.CompilerOptions.Types,
		ConfigFilePath: configFileName,
	}
	if strings.EqualFold(data.CompilerOptions.ModuleResolution, "classic") {
		options.ModuleResolution = compiler.ResolutionClassic
	}

	snapshot := &ConfigSnapshot{
		ConfigFileName:      configFileName,
		Options:             options,
		HasExplicitFiles:    data.Files != nil,
		CompileOnSave:       data.CompileOnSave,
		WildcardDirectories: make(map[string]bool),
	}
	for _, plugin := range data.CompilerOptions.Plugins {
		if plugin.Name != "" {
			snapshot.Plugins = append(snapshot.Plugins, project.PluginImport{Name: plugin.Name})
		}
	}

	configDir := paths.Dir(configFileName)
	if data.Files != nil {
		for _, f := range data.Files {
			snapshot.FileNames = append(snapshot.FileNames, paths.Join(configDir, f))
		}
		return snapshot, nil
	}

	include := data.Include
	if len(include) == 0 {
		include = []string{"**/*"}
	}
	for _, pattern := range include {
		dir, recursive := wildcardDirectory(configDir, pattern)
		if dir != "" {
			snapshot.WildcardDirectories[dir] = recursive
		}
	}

	names, err := enumerateSourceFiles(configDir, include, data.Exclude, options.AllowJs)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate files for %s: %w", configFileName, err)
	}
	snapshot.FileNames = names
	return snapshot, nil
}

// wildcardDirectory extracts the literal directory prefix of a glob pattern
// and whether changes below it require a recursive watch.
func wildcardDirectory(configDir, pattern string) (string, bool) {
	normalized := paths.NormalizeSlashes(pattern)
	recursive := strings.Contains(normalized, "**")

	var literal []string
	for _, segment := range strings.Split(normalized, "/") {
		if strings.ContainsAny(segment, "*?[{") {
			break
		}
		literal = append(literal, segment)
	}
	dir := configDir
	if len(literal) > 0 {
		dir = paths.Join(configDir, strings.Join(literal, "/"))
	}
	return dir, recursive
}

// enumerateSourceFiles walks the config directory and collects the source
// files matched by the include globs and not matched by the exclude globs.
// node_modules and dot directories are always skipped.
func enumerateSourceFiles(configDir string, include, exclude []string, allowJs bool) ([]string, error) {
	var out []string

	err := filepath.WalkDir(configDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries we can't access
		}

		if d.IsDir() {
			name := d.Name()
			if name == "node_modules" || strings.HasPrefix(name, ".") && path != configDir {
				return filepath.SkipDir
			}
			return nil
		}

		fileName := paths.NormalizeSlashes(path)
		if !isSupportedSourceFile(fileName, allowJs) {
			return nil
		}

		rel, relErr := filepath.Rel(configDir, path)
		if relErr != nil {
			return nil
		}
		rel = paths.NormalizeSlashes(rel)

		matched := false
		for _, pattern := range include {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				matched = true
				break
			}
			// "dir/**/*" style patterns should also match "dir/a.ts".
			if ok, _ := doublestar.Match(pattern+".*", rel); ok {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}
		for _, pattern := range exclude {
			if ok, _ := doublestar.Match(paths.NormalizeSlashes(pattern), rel); ok {
				return nil
			}
		}

		out = append(out, fileName)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isSupportedSourceFile(fileName string, allowJs bool) bool {
	if paths.HasTsExtension(fileName) {
		return true
	}
	return allowJs && paths.HasJsExtension(fileName)
}
