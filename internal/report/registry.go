package report

import (
	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/record"
)

// defaultPlatformKey is the registry fallback when a record carries no data
// type mapping and matches no platform's structural shape.
const defaultPlatformKey = "default"

// Registry maps record data types and platforms to the template that renders
// them. New data types can be registered without touching the renderer.
type Registry struct {
	dataTypes        map[record.DataType]string
	platformDefaults map[string]string
}

// NewRegistry returns a registry preloaded with the built-in template
// mappings.
func NewRegistry() *Registry {
	return &Registry{
		dataTypes: map[record.DataType]string{
			record.TypeWhois:        "silentpush_whois.html",
			record.TypeWebscan:      "silentpush_webscan.html",
			record.TypeDomainSearch: "silentpush_domainsearch.html",
			record.TypeGeneric:      "silentpush_generic.html",
			// Unknown records were wrapped into the generic shape by the
			// normalizer, so they render through the same template.
			record.TypeUnknown: "silentpush_generic.html",
			record.TypeMessage: "message.html",
		},
		platformDefaults: map[string]string{
			config.PlatformURLScan:    "urlscan_result.html",
			config.PlatformSilentPush: "silentpush_generic.html",
			defaultPlatformKey:        "urlscan_result.html",
		},
	}
}

// Register maps a data type to a template name.
func (r *Registry) Register(dt record.DataType, templateName string) {
	r.dataTypes[dt] = templateName
}

// RegisterPlatformDefault maps a platform to its fallback template name.
func (r *Registry) RegisterPlatformDefault(platform, templateName string) {
	r.platformDefaults[platform] = templateName
}

// TemplateFor resolves the template for one record: an explicit data type
// mapping wins; otherwise records shaped like a web-scan result (page plus
// task.uuid) get the urlscan template, and everything else the default.
func (r *Registry) TemplateFor(rec record.Record) string {
	if name, ok := r.dataTypes[rec.Type]; ok {
		return name
	}
	if _, hasPage := rec.Fields["page"]; hasPage {
		if task, ok := rec.Fields["task"].(map[string]any); ok {
			if _, hasUUID := task["uuid"]; hasUUID {
				return r.platformDefaults[config.PlatformURLScan]
			}
		}
	}
	return r.platformDefaults[defaultPlatformKey]
}
