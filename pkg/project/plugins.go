package project

import (
	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
)

// loadPlugins resolves and activates the configured plugin list plus the
// service-wide global plugins. Plugins wrap the language service in load
// order: the last loaded plugin is the outermost wrapper. Every failure is
// absorbed: an unresolvable module or a panicking factory costs that plugin
// its contribution and nothing else.
func (p *Project) loadPlugins(imports []PluginImport) {
	all := append([]PluginImport(nil), imports...)
	for _, name := range p.svc.GlobalPlugins() {
		all = append(all, PluginImport{Name: name})
	}
	if len(all) == 0 {
		return
	}

	searchPaths := p.pluginSearchPaths()
	for _, imp := range all {
		p.enablePlugin(imp, searchPaths)
	}
}

// pluginSearchPaths builds the module resolution list: the executable's
// package root, the configured probe locations, and, when local loads are
// allowed, the config file's directory prepended.
func (p *Project) pluginSearchPaths() []string {
	searchPaths := []string{paths.Dir(p.host.GetExecutingFilePath())}
	searchPaths = append(searchPaths, p.svc.PluginProbeLocations()...)
	if p.svc.AllowLocalPluginLoads() && p.configured != nil {
		local := paths.Dir(p.configured.configFileName)
		searchPaths = append([]string{local}, searchPaths...)
	}
	return searchPaths
}

func (p *Project) enablePlugin(imp PluginImport, searchPaths []string) {
	for _, searchPath := range searchPaths {
		resolved := p.host.ResolvePath(searchPath)
		factory, err := p.host.Require(resolved, imp.Name)
		if err != nil || factory == nil {
			continue
		}
		p.activatePlugin(imp, factory)
		return
	}
	logging.Warn("plugin not found", "project", p.name, "plugin", imp.Name, "searchPaths", len(searchPaths))
}

// activatePlugin instantiates the module and installs its wrapper. A panic
// from the factory or from Create leaves the current language service in
// place.
func (p *Project) activatePlugin(imp PluginImport, factory PluginModuleFactory) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("plugin activation failed", "project", p.name, "plugin", imp.Name, "error", r)
		}
	}()

	module := factory()
	if module == nil {
		logging.Warn("plugin factory returned nothing", "project", p.name, "plugin", imp.Name)
		return
	}

	wrapped := module.Create(PluginCreateInfo{
		Project:         p,
		LanguageService: p.ls,
		Config:          imp.Config,
	})
	if wrapped == nil {
		logging.Warn("plugin create returned nothing", "project", p.name, "plugin", imp.Name)
		return
	}

	p.ls = wrapped
	p.plugins = append(p.plugins, module)
	logging.Info("plugin activated", "project", p.name, "plugin", imp.Name)
}

// Plugins returns the activated plugin modules in load order.
func (p *Project) Plugins() []PluginModule {
	return append([]PluginModule(nil), p.plugins...)
}

var _ compiler.LanguageService = (*compiler.Engine)(nil)
