package core

import (
	"sort"

	"dashcore/pkg/dashboard"
)

// OriginConfig marks dashboards installed from YAML files rather than a
// plugin.
const OriginConfig = "config"

// PluginMetadata describes an installed plugin.
type PluginMetadata struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Dashboards []string `json:"dashboards"`
}

type entry struct {
	def    dashboard.Definition
	origin string
}

func sortedPlugins(in map[string]PluginMetadata) []PluginMetadata {
	out := make([]PluginMetadata, 0, len(in))
	for _, meta := range in {
		meta.Dashboards = append([]string(nil), meta.Dashboards...)
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
