package interdex

import (
	"fmt"
	"log/slog"

	"github.com/interdex-project/interdex/internal/config"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// maxContainers is the hard ceiling on non-primary containers once canary
// emission is enabled: canary names are zero-padded two-digit ordinals.
const maxContainers = 99

// Orchestrator drives the full emission sequence: primary container,
// prescribed interdex prefix, minimizer-driven remainder, plugin
// leftovers, final flush. It is single-threaded and non-cooperative by
// construction — there is exactly one goroutine ever touching its state.
type Orchestrator struct {
	reg     *dexmodel.Registry
	plugins *PluginHost
	logger  *slog.Logger

	containerCfg config.ContainerConfig
	minimizerCfg config.MinimizerConfig
	limits       Limits

	current     *ContainerStructure
	currentInfo DexInfo

	finalized []*FinalizedContainer
	emitted   map[*dexmodel.Class]struct{}
	relocated map[*dexmodel.Class]struct{}

	emittingScroll   bool
	emittingBG       bool
	justExitedBG     bool
	coldstartMarkers int
	coldstartSeen    int
}

// New returns an Orchestrator ready to run, with limits derived from
// containerCfg and no reserved headroom yet claimed by plugins.
func New(reg *dexmodel.Registry, plugins *PluginHost, containerCfg config.ContainerConfig, minimizerCfg config.MinimizerConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	limits := Limits{
		MaxMethodRefs: containerCfg.MethodRefsLimit,
		MaxFieldRefs:  containerCfg.FieldRefsLimit,
		MaxTypeRefs:   containerCfg.TypeRefsLimit,
		MaxClasses:    1 << 30,
	}

	if containerCfg.ForceSingleDex {
		limits.MaxMethodRefs = 1 << 30
		limits.MaxFieldRefs = 1 << 30
		limits.MaxTypeRefs = 1 << 30
	}

	return &Orchestrator{
		reg:          reg,
		plugins:      plugins,
		logger:       logger,
		containerCfg: containerCfg,
		minimizerCfg: minimizerCfg,
		limits:       limits,
		current:      NewContainerStructure(limits),
		emitted:      make(map[*dexmodel.Class]struct{}),
		relocated:    make(map[*dexmodel.Class]struct{}),
	}
}

// gatherRefs returns cls's own references plus every plugin's
// contribution, partitioned by kind.
func (o *Orchestrator) gatherRefs(cls *dexmodel.Class) (methodRefs, fieldRefs, typeRefs []dexmodel.Reference) {
	all := append(append([]dexmodel.Reference(nil), cls.References...), o.plugins.GatherRefs(cls)...)

	_, wasRelocated := o.relocated[cls]

	for _, ref := range all {
		switch ref.Kind {
		case dexmodel.MethodRef:
			if wasRelocated {
				continue
			}

			methodRefs = append(methodRefs, ref)
		case dexmodel.FieldRef:
			fieldRefs = append(fieldRefs, ref)
		case dexmodel.TypeRef, dexmodel.StringRef:
			typeRefs = append(typeRefs, ref)
		}
	}

	return methodRefs, fieldRefs, typeRefs
}

// refreshReserved re-queries the plugin host for reserved headroom, as
// required before every admission decision.
func (o *Orchestrator) refreshReserved() {
	m, f, t, cnt := o.plugins.ReservedCounts()

	limits := o.limits
	limits.ReservedMethodRefs = m
	limits.ReservedFieldRefs = f
	limits.ReservedTypeRefs = t
	limits.ReservedClasses = cnt
	o.current.SetLimits(limits)
}

// EmitClass implements the emit_class contract of §4.4: canary and
// already-present classes are rejected outright, a checked veto rejects,
// perf_sensitive is stamped, refs are gathered and an admission attempted;
// on overflow the container is flushed and the class is force-added to a
// fresh one. erased carries the optional erased-classes-out of §4.4: any
// plugin-reported classes that were squashed into cls as a side effect of
// emitting it, whose refs still need charging.
func (o *Orchestrator) EmitClass(cls *dexmodel.Class, checkIfSkip, perfSensitive bool) (emitted, overflowed bool, erased []*dexmodel.Class, err error) {
	if cls.Canary {
		return false, false, nil, nil
	}

	if o.current.HasClass(cls) {
		return false, false, nil, nil
	}

	// A plugin vetoing a class the driver has already placed in a prior
	// container is a broken plugin contract: the earlier placement is
	// irrevocable, so the veto can never be honored.
	if _, already := o.emitted[cls]; already {
		if checkIfSkip && o.plugins.ShouldSkip(cls) {
			return false, false, nil, fmt.Errorf("%w: plugin vetoed already-placed class %q", ErrPluginConflict, cls.Name)
		}

		return false, false, nil, nil
	}

	if checkIfSkip && o.plugins.ShouldSkip(cls) {
		return false, false, nil, nil
	}

	if perfSensitive {
		cls.PerfSensitive = true
	}

	o.refreshReserved()

	methodRefs, fieldRefs, typeRefs := o.gatherRefs(cls)

	if o.current.AddClassIfFits(cls, methodRefs, fieldRefs, typeRefs) {
		o.emitted[cls] = struct{}{}

		erased, err = o.gatherErased(cls)
		if err != nil {
			return true, false, nil, err
		}

		return true, false, erased, nil
	}

	if o.current.ClassCount() == 0 {
		return false, false, nil, fmt.Errorf("%w: class %q exceeds container capacity on its own", ErrOversizedClass, cls.Name)
	}

	err = o.flush()
	if err != nil {
		return false, false, nil, err
	}

	o.refreshReserved()
	methodRefs, fieldRefs, typeRefs = o.gatherRefs(cls)
	o.current.AddClassUnchecked(cls, methodRefs, fieldRefs, typeRefs)
	o.emitted[cls] = struct{}{}

	erased, err = o.gatherErased(cls)
	if err != nil {
		return true, true, nil, err
	}

	return true, true, erased, nil
}

// gatherErased collects the classes plugins report as erased as a side
// effect of emitting cls, asserting each is genuinely plugin-vetoed: a
// class reported erased but not skipped by any plugin would otherwise be
// placed nowhere and its refs charged as if applied, silently dropping it
// from the output.
func (o *Orchestrator) gatherErased(cls *dexmodel.Class) ([]*dexmodel.Class, error) {
	erased := o.plugins.ErasedClasses(cls)

	for _, e := range erased {
		if !o.plugins.ShouldSkip(e) {
			return nil, fmt.Errorf("%w: erased class %q reported for %q is not vetoed by any plugin", ErrPluginConflict, e.Name, cls.Name)
		}
	}

	return erased, nil
}

// flush mints the container's canary, lets plugins contribute additional
// classes, finalizes the container, and resets transient DexInfo flags.
func (o *Orchestrator) flush() error {
	ordinal := len(o.finalized)

	if o.containerCfg.EmitCanaries && ordinal > maxContainers {
		return fmt.Errorf("%w: container ordinal %d exceeds maximum of %d", ErrStructuralViolation, ordinal, maxContainers)
	}

	if o.containerCfg.EmitCanaries && !o.currentInfo.Primary {
		canary := o.reg.Canary(ordinal)
		o.current.AddClassUnchecked(canary, nil, nil, []dexmodel.Reference{{Kind: dexmodel.TypeRef, Descriptor: canary.Name}})
	}

	before := o.current.GetCurrentClasses()
	injected := o.plugins.AdditionalClasses(o.finalized, before)
	injectedSet := make(map[*dexmodel.Class]struct{}, len(injected))

	for _, cls := range injected {
		o.current.AddClassUnchecked(cls, nil, nil, nil)
		injectedSet[cls] = struct{}{}

		if o.currentInfo.Primary || o.currentInfo.BetamapOrdered {
			cls.PerfSensitive = true
		}
	}

	classes := o.current.EndContainer()

	if o.containerCfg.SortRemainingClasses {
		prefixLen := 0
		for prefixLen < len(classes) {
			cls := classes[prefixLen]

			_, wasInjected := injectedSet[cls]
			if !cls.PerfSensitive || wasInjected {
				break
			}

			prefixLen++
		}

		SortCompressionFriendlySuffix(classes, prefixLen)
	}

	o.finalized = append(o.finalized, &FinalizedContainer{
		Ordinal: ordinal,
		Classes: classes,
		Info:    o.currentInfo,
	})

	o.currentInfo.resetTransient()

	return nil
}

// EmitPrimary implements the primary-container policy of §4.4: prefix
// classes belonging to the primary set are emitted first, in prefix
// order, marked perf-sensitive; remaining primary classes follow in their
// original order. If normalPrimaryDex is set, the caller should instead
// fold primary classes into the loaded order before calling EmitPrefix —
// EmitPrimary is a no-op in that mode.
func (o *Orchestrator) EmitPrimary(primaryClasses []*dexmodel.Class, loaded *LoadedOrder) error {
	if o.containerCfg.NormalPrimaryDex {
		return nil
	}

	o.currentInfo.Primary = true

	inPrimary := make(map[*dexmodel.Class]struct{}, len(primaryClasses))
	for _, cls := range primaryClasses {
		inPrimary[cls] = struct{}{}
	}

	placed := make(map[*dexmodel.Class]struct{}, len(primaryClasses))

	for _, entry := range loaded.Entries {
		if entry.Class == nil {
			continue
		}

		if _, ok := inPrimary[entry.Class]; !ok {
			continue
		}

		_, overflowed, _, err := o.EmitClass(entry.Class, false, true)
		if err != nil {
			return err
		}

		if overflowed {
			return fmt.Errorf("%w: primary container exceeds a single container", ErrStructuralViolation)
		}

		placed[entry.Class] = struct{}{}
	}

	for _, cls := range primaryClasses {
		if _, done := placed[cls]; done {
			continue
		}

		_, overflowed, _, err := o.EmitClass(cls, false, true)
		if err != nil {
			return err
		}

		if overflowed {
			return fmt.Errorf("%w: primary container exceeds a single container", ErrStructuralViolation)
		}
	}

	// An empty primary set flushes nothing: per S1, a universe with no
	// primary classes yields zero containers, not an empty canary-only one.
	if o.current.ClassCount() == 0 {
		o.currentInfo = DexInfo{Coldstart: true}

		return nil
	}

	err := o.flush()
	if err != nil {
		return err
	}

	o.currentInfo = DexInfo{Coldstart: true}

	return nil
}

// prescan counts END_OF_COLDSTART_DEX markers, used to detect the final
// one so coldstart can be cleared at the right moment.
func prescan(loaded *LoadedOrder) int {
	count := 0

	for _, entry := range loaded.Entries {
		if entry.Marker == MarkerEndOfColdstartDex {
			count++
		}
	}

	return count
}

// EmitPrefix implements interdex-prefix emission: the marker-driven walk
// of §4.4, including the region-marker assertions and the betamap /
// extended-mode transitions.
func (o *Orchestrator) EmitPrefix(loaded *LoadedOrder, unreferenced map[*dexmodel.Class]struct{}) error {
	o.coldstartMarkers = prescan(loaded)
	o.coldstartSeen = 0

	var skipped []*dexmodel.Class

	for _, entry := range loaded.Entries {
		if entry.Marker != MarkerNone {
			err := o.applyMarker(entry)
			if err != nil {
				return err
			}

			continue
		}

		cls := entry.Class
		if cls == nil {
			continue
		}

		if _, cold := unreferenced[cls]; cold {
			skipped = append(skipped, cls)

			continue
		}

		if o.justExitedBG {
			o.currentInfo.Extended = true
			o.justExitedBG = false
		}

		o.currentInfo.BetamapOrdered = true

		_, _, _, err := o.EmitClass(cls, true, true)
		if err != nil {
			return err
		}
	}

	if o.emittingScroll {
		return fmt.Errorf("%w: unterminated scroll region", ErrStructuralViolation)
	}

	if o.emittingBG {
		return fmt.Errorf("%w: unterminated background region", ErrStructuralViolation)
	}

	for _, cls := range skipped {
		_, _, _, err := o.EmitClass(cls, true, false)
		if err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) applyMarker(entry OrderEntry) error {
	switch entry.Marker {
	case MarkerEndOfColdstartDex:
		err := o.flush()
		if err != nil {
			return err
		}

		o.coldstartSeen++
		if o.coldstartSeen >= o.coldstartMarkers {
			o.currentInfo.Coldstart = false
		} else {
			o.currentInfo.Coldstart = true
		}

	case MarkerScrollStart:
		if o.emittingScroll || o.emittingBG {
			return fmt.Errorf("%w: scroll region overlaps another region", ErrStructuralViolation)
		}

		o.emittingScroll = true
		o.currentInfo.Scroll = true

	case MarkerScrollEnd:
		if !o.emittingScroll {
			return fmt.Errorf("%w: scroll end without matching start", ErrStructuralViolation)
		}

		o.emittingScroll = false

	case MarkerBackgroundStart:
		if o.emittingScroll || o.emittingBG {
			return fmt.Errorf("%w: background region overlaps another region", ErrStructuralViolation)
		}

		o.emittingBG = true
		o.currentInfo.Background = true

	case MarkerBackgroundEnd:
		if !o.emittingBG {
			return fmt.Errorf("%w: background end without matching start", ErrStructuralViolation)
		}

		o.emittingBG = false
		o.justExitedBG = true
	}

	return nil
}

// EmitRemainder implements §4.4's remainder phase: with the minimizer
// disabled, classes are emitted in universe order; otherwise the
// relocation pass, frequency seeding, and pick-worst main loop drive
// emission to minimize cross-container reference duplication.
func (o *Orchestrator) EmitRemainder(universe []*dexmodel.Class, relocator *Relocator) error {
	var pending []*dexmodel.Class

	for _, cls := range universe {
		if cls.Canary {
			continue
		}

		if _, done := o.emitted[cls]; done {
			continue
		}

		pending = append(pending, cls)
	}

	if !o.minimizerCfg.Enabled {
		for _, cls := range pending {
			_, _, _, err := o.EmitClass(cls, true, false)
			if err != nil {
				return err
			}
		}

		return nil
	}

	return o.emitRemainderMinimized(pending, relocator)
}

func (o *Orchestrator) emitRemainderMinimized(pending []*dexmodel.Class, relocator *Relocator) error {
	minimizer := NewCrossDexRefMinimizer(WeightsFromConfig(o.minimizerCfg))

	refsOf := make(map[*dexmodel.Class][]dexmodel.Reference, len(pending))

	candidates := make([]*dexmodel.Class, 0, len(pending))

	for _, cls := range pending {
		forbidden := o.plugins.ShouldNotRelocateMethodsOf(cls)

		refs := o.allRefs(cls)

		if relocator != nil && relocator.Eligible(cls, forbidden) {
			helpers := relocator.Relocate(cls)
			if len(helpers) > 0 {
				refs = nonMethodRefs(refs)
				o.relocated[cls] = struct{}{}
			}

			// Helpers are pre-owned by the relocator: ignore them in the
			// minimizer and place them directly, rather than letting them
			// re-enter the candidate pool the two loops below seed.
			for _, h := range helpers {
				minimizer.Ignore(h)

				_, _, hErased, hErr := o.EmitClass(h, false, false)
				if hErr != nil {
					return hErr
				}

				for _, e := range hErased {
					minimizer.Insert(e, o.allRefs(e))
					minimizer.Erase(e, true, false)
				}
			}
		}

		refsOf[cls] = refs
		candidates = append(candidates, cls)
	}

	for _, cls := range candidates {
		minimizer.Sample(refsOf[cls])
	}

	for _, cls := range candidates {
		minimizer.Insert(cls, refsOf[cls])
	}

	for _, cls := range o.current.GetCurrentClasses() {
		refs := o.allRefs(cls)
		minimizer.Sample(refs)
		minimizer.Insert(cls, refs)
		minimizer.Erase(cls, true, false)
	}

	pickWorst := true

	for minimizer.Len() > 0 {
		var (
			next *dexmodel.Class
			ok   bool
		)

		if pickWorst {
			worst, hasWorst := minimizer.Worst()
			if hasWorst && minimizer.GetUnappliedRefs(worst) > minimizer.GetAppliedRefsSize() {
				next, ok = worst, true
			}
		}

		if !ok {
			next, ok = minimizer.Front()
		}

		if !ok {
			break
		}

		emitted, overflowed, erased, err := o.EmitClass(next, true, false)
		if err != nil {
			return err
		}

		minimizer.Erase(next, emitted, overflowed)

		for _, e := range erased {
			minimizer.Insert(e, o.allRefs(e))
			minimizer.Erase(e, true, false)
		}

		pickWorst = (pickWorst && !emitted) || overflowed
	}

	return nil
}

func (o *Orchestrator) allRefs(cls *dexmodel.Class) []dexmodel.Reference {
	refs := append(append([]dexmodel.Reference(nil), cls.References...), o.plugins.GatherRefs(cls)...)

	if _, relocated := o.relocated[cls]; relocated {
		return nonMethodRefs(refs)
	}

	return refs
}

func nonMethodRefs(refs []dexmodel.Reference) []dexmodel.Reference {
	out := make([]dexmodel.Reference, 0, len(refs))

	for _, ref := range refs {
		if ref.Kind != dexmodel.MethodRef {
			out = append(out, ref)
		}
	}

	return out
}

// EmitLeftovers implements the Leftovers phase: drain every plugin's
// leftover-class list.
func (o *Orchestrator) EmitLeftovers() error {
	for _, cls := range o.plugins.LeftoverClasses() {
		if _, done := o.emitted[cls]; done {
			continue
		}

		_, _, _, err := o.EmitClass(cls, true, false)
		if err != nil {
			return err
		}
	}

	return nil
}

// Finish implements the Final-flush phase and returns the completed
// ContainerSequence.
func (o *Orchestrator) Finish() (*ContainerSequence, error) {
	if o.current.ClassCount() > 0 {
		err := o.flush()
		if err != nil {
			return nil, err
		}
	}

	return &ContainerSequence{Containers: o.finalized}, nil
}
