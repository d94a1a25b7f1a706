package config

// Container capacity defaults, matching historical dex reference ceilings.
const (
	DefaultMethodRefsLimit  = 64000
	DefaultFieldRefsLimit   = 64000
	DefaultTypeRefsLimit    = 64000
	DefaultLinearAllocLimit = 0

	DefaultForceSingleDex       = false
	DefaultNormalPrimaryDex     = false
	DefaultKeepPrimaryOrder     = false
	DefaultStaticPruneClasses   = false
	DefaultEmitCanaries         = true
	DefaultSortRemainingClasses = true
)

// Minimizer weight defaults.
const (
	DefaultMinimizerEnabled = true

	DefaultMethodRefWeight = 100.0
	DefaultFieldRefWeight  = 30.0
	DefaultTypeRefWeight   = 30.0
	DefaultStringRefWeight = 30.0

	DefaultMethodSeedWeight = 30.0
	DefaultFieldSeedWeight  = 10.0
	DefaultTypeSeedWeight   = 10.0
	DefaultStringSeedWeight = 10.0
)

// Relocator defaults.
const (
	DefaultRelocatorEnabled               = false
	DefaultMaxRelocatedMethodsPerClass    = 100
	DefaultRelocateStaticMethods          = true
	DefaultRelocateNonStaticDirectMethods = true
	DefaultRelocateVirtualMethods         = false
	DefaultRelocateNonRenameable          = false
)

// Order loader defaults.
const (
	DefaultOrderFile        = ""
	DefaultSecondaryDexHead = "LDexEndMarker;"
)

// Runtime defaults.
const (
	DefaultMemoryBudget = ""
	DefaultGOGC         = 100
	DefaultCacheDir     = ""
)

// Checkpoint (run cache) defaults.
const (
	DefaultCheckpointEnabled   = false
	DefaultCheckpointDir       = ""
	DefaultCheckpointClearPrev = false
)
