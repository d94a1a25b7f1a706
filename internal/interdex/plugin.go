package interdex

import "github.com/interdex-project/interdex/pkg/dexmodel"

// Plugin is the fixed capability record external extensions implement:
// contribute additional references per class, veto classes, contribute
// synthesized classes per container, report erased classes, and report
// leftover classes. Dispatch is by interface, not subclass, per a fixed
// ordered list held by PluginHost.
type Plugin interface {
	// Name identifies the plugin in diagnostics and conflict errors.
	Name() string

	// GatherRefs returns additional references cls induces beyond its own,
	// e.g. refs synthesized by a preceding instrumentation pass.
	GatherRefs(cls *dexmodel.Class) []dexmodel.Reference

	// ShouldSkipClass reports whether this plugin vetoes cls outright.
	ShouldSkipClass(cls *dexmodel.Class) bool

	// ShouldNotRelocateMethodsOf reports whether the cross-dex relocator
	// must leave cls's methods in place.
	ShouldNotRelocateMethodsOf(cls *dexmodel.Class) bool

	// AdditionalClasses returns classes this plugin wants injected into the
	// container that just accumulated currentClasses, given the containers
	// already finalized.
	AdditionalClasses(finalized []*FinalizedContainer, currentClasses []*dexmodel.Class) []*dexmodel.Class

	// ErasedClasses reports classes this plugin considers erased as a side
	// effect of emitting cls — e.g. squashed or merged into cls and never
	// placed in a container of their own — whose references must still be
	// charged against the minimizer's applied set so later candidates are
	// priced against them.
	ErasedClasses(cls *dexmodel.Class) []*dexmodel.Class

	// LeftoverClasses returns classes this plugin still owns after the
	// main emission passes have drained, to be emitted in the Leftovers
	// phase.
	LeftoverClasses() []*dexmodel.Class

	// ReservedCounts reports headroom this plugin wants reserved in the
	// current container ahead of the next admission decision.
	ReservedCounts() (methodRefs, fieldRefs, typeRefs, classes int)
}

// PluginHost iterates a fixed ordered list of Plugins, aggregating their
// responses the way the orchestrator needs: OR across vetoes, union across
// contributed refs and classes, sums across reserved headroom.
type PluginHost struct {
	plugins []Plugin
}

// NewPluginHost returns a host dispatching to plugins in the given order.
func NewPluginHost(plugins ...Plugin) *PluginHost {
	return &PluginHost{plugins: plugins}
}

// GatherRefs returns the union of every plugin's contributed references
// for cls.
func (h *PluginHost) GatherRefs(cls *dexmodel.Class) []dexmodel.Reference {
	var all []dexmodel.Reference

	for _, p := range h.plugins {
		all = append(all, p.GatherRefs(cls)...)
	}

	return all
}

// ShouldSkip reports whether any plugin vetoes cls.
func (h *PluginHost) ShouldSkip(cls *dexmodel.Class) bool {
	for _, p := range h.plugins {
		if p.ShouldSkipClass(cls) {
			return true
		}
	}

	return false
}

// ShouldNotRelocateMethodsOf reports whether any plugin forbids relocating
// cls's methods.
func (h *PluginHost) ShouldNotRelocateMethodsOf(cls *dexmodel.Class) bool {
	for _, p := range h.plugins {
		if p.ShouldNotRelocateMethodsOf(cls) {
			return true
		}
	}

	return false
}

// AdditionalClasses concatenates every plugin's additional classes, in
// plugin order.
func (h *PluginHost) AdditionalClasses(finalized []*FinalizedContainer, current []*dexmodel.Class) []*dexmodel.Class {
	var all []*dexmodel.Class

	for _, p := range h.plugins {
		all = append(all, p.AdditionalClasses(finalized, current)...)
	}

	return all
}

// ErasedClasses concatenates every plugin's erased classes for cls, in
// plugin order.
func (h *PluginHost) ErasedClasses(cls *dexmodel.Class) []*dexmodel.Class {
	var all []*dexmodel.Class

	for _, p := range h.plugins {
		all = append(all, p.ErasedClasses(cls)...)
	}

	return all
}

// LeftoverClasses concatenates every plugin's leftover classes, in plugin
// order, each plugin's contribution draining in a single Leftovers pass.
func (h *PluginHost) LeftoverClasses() []*dexmodel.Class {
	var all []*dexmodel.Class

	for _, p := range h.plugins {
		all = append(all, p.LeftoverClasses()...)
	}

	return all
}

// ReservedCounts sums every plugin's requested headroom.
func (h *PluginHost) ReservedCounts() (methodRefs, fieldRefs, typeRefs, classes int) {
	for _, p := range h.plugins {
		m, f, t, c := p.ReservedCounts()
		methodRefs += m
		fieldRefs += f
		typeRefs += t
		classes += c
	}

	return methodRefs, fieldRefs, typeRefs, classes
}

// NopPlugin is a zero-behavior Plugin embeddable by real plugins that only
// need to override a handful of methods.
type NopPlugin struct{ PluginName string }

// Name returns the configured plugin name.
func (n NopPlugin) Name() string { return n.PluginName }

// GatherRefs contributes no additional references.
func (n NopPlugin) GatherRefs(*dexmodel.Class) []dexmodel.Reference { return nil }

// ShouldSkipClass never vetoes.
func (n NopPlugin) ShouldSkipClass(*dexmodel.Class) bool { return false }

// ShouldNotRelocateMethodsOf never forbids relocation.
func (n NopPlugin) ShouldNotRelocateMethodsOf(*dexmodel.Class) bool { return false }

// AdditionalClasses contributes nothing.
func (n NopPlugin) AdditionalClasses([]*FinalizedContainer, []*dexmodel.Class) []*dexmodel.Class { return nil }

// ErasedClasses reports nothing erased.
func (n NopPlugin) ErasedClasses(*dexmodel.Class) []*dexmodel.Class { return nil }

// LeftoverClasses owns nothing.
func (n NopPlugin) LeftoverClasses() []*dexmodel.Class { return nil }

// ReservedCounts reserves nothing.
func (n NopPlugin) ReservedCounts() (int, int, int, int) { return 0, 0, 0, 0 }
