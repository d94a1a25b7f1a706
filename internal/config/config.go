// Package config provides YAML-based configuration for the interdex packer.
package config

import "errors"

// Config is the top-level configuration struct for interdex.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Container  ContainerConfig  `mapstructure:"container"`
	Minimizer  MinimizerConfig  `mapstructure:"minimizer"`
	Relocator  RelocatorConfig  `mapstructure:"relocator"`
	Order      OrderConfig      `mapstructure:"order"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
}

// ContainerConfig holds the capacity limits and emission toggles that shape
// how classes are packed into containers.
type ContainerConfig struct {
	MethodRefsLimit      int  `mapstructure:"method_refs_limit"`
	FieldRefsLimit       int  `mapstructure:"field_refs_limit"`
	TypeRefsLimit        int  `mapstructure:"type_refs_limit"`
	LinearAllocLimit     int  `mapstructure:"linear_alloc_limit"`
	ForceSingleDex       bool `mapstructure:"force_single_dex"`
	NormalPrimaryDex     bool `mapstructure:"normal_primary_dex"`
	KeepPrimaryOrder     bool `mapstructure:"keep_primary_order"`
	StaticPruneClasses   bool `mapstructure:"static_prune_classes"`
	EmitCanaries         bool `mapstructure:"emit_canaries"`
	SortRemainingClasses bool `mapstructure:"sort_remaining_classes"`
}

// MinimizerConfig holds the per-kind weights the cross-dex reference
// minimizer uses to score candidate classes: a ref_weight rewarding refs
// already applied in the open container, and a seed_weight penalizing refs
// the candidate would newly introduce, both independently configurable per
// reference kind.
type MinimizerConfig struct {
	Enabled bool `mapstructure:"enabled"`

	MethodRefWeight float64 `mapstructure:"method_ref_weight"`
	FieldRefWeight  float64 `mapstructure:"field_ref_weight"`
	TypeRefWeight   float64 `mapstructure:"type_ref_weight"`
	StringRefWeight float64 `mapstructure:"string_ref_weight"`

	MethodSeedWeight float64 `mapstructure:"method_seed_weight"`
	FieldSeedWeight  float64 `mapstructure:"field_seed_weight"`
	TypeSeedWeight   float64 `mapstructure:"type_seed_weight"`
	StringSeedWeight float64 `mapstructure:"string_seed_weight"`
}

// RelocatorConfig controls the cross-dex method relocation pass. At least
// one of the three RelocateXxxMethods toggles must be set for the pass to
// run at all, mirroring the original's "any category enabled" gate.
type RelocatorConfig struct {
	Enabled                     bool `mapstructure:"enabled"`
	MaxRelocatedMethodsPerClass int  `mapstructure:"max_relocated_methods_per_class"`

	RelocateStaticMethods          bool `mapstructure:"relocate_static_methods"`
	RelocateNonStaticDirectMethods bool `mapstructure:"relocate_non_static_direct_methods"`
	RelocateVirtualMethods         bool `mapstructure:"relocate_virtual_methods"`

	// RelocateNonRenameable additionally allows relocating methods of classes
	// the renamer has pinned in place. Not part of the original relocator
	// config; supplemental, since renameability is otherwise never consulted
	// by this pass and non-renameable classes are usually obfuscation-exempt
	// framework entry points worth leaving untouched by default.
	RelocateNonRenameable bool `mapstructure:"relocate_non_renameable"`
}

// AnyMethodKindEnabled reports whether the relocator is configured to
// relocate any category of method at all.
func (c RelocatorConfig) AnyMethodKindEnabled() bool {
	return c.RelocateStaticMethods || c.RelocateNonStaticDirectMethods || c.RelocateVirtualMethods
}

// OrderConfig holds the prescribed-order loader settings.
type OrderConfig struct {
	OrderFile        string `mapstructure:"order_file"`
	SecondaryDexHead string `mapstructure:"secondary_dex_head"`
}

// RuntimeConfig holds ambient resource-tuning knobs for the orchestrator run.
type RuntimeConfig struct {
	MemoryBudget string `mapstructure:"memory_budget"`
	GOGC         int    `mapstructure:"gogc"`
	CacheDir     string `mapstructure:"cache_dir"`
}

// CheckpointConfig holds run-cache settings.
type CheckpointConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Dir       string `mapstructure:"dir"`
	ClearPrev bool   `mapstructure:"clear_prev"`
}

// ErrConfigViolation marks a configuration error as fatal and caller-caused:
// malformed shape, an out-of-range weight, a negative capacity. Callers
// should never retry on this error; they should fix the config and restart.
var ErrConfigViolation = errors.New("config violation")

// Sentinel errors for configuration validation.
var (
	// ErrInvalidMethodRefsLimit indicates the method ref limit is not positive.
	ErrInvalidMethodRefsLimit = errors.New("container.method_refs_limit must be positive")
	// ErrInvalidFieldRefsLimit indicates the field ref limit is not positive.
	ErrInvalidFieldRefsLimit = errors.New("container.field_refs_limit must be positive")
	// ErrInvalidTypeRefsLimit indicates the type ref limit is not positive.
	ErrInvalidTypeRefsLimit = errors.New("container.type_refs_limit must be positive")
	// ErrInvalidLinearAllocLimit indicates the linear alloc limit is negative.
	ErrInvalidLinearAllocLimit = errors.New("container.linear_alloc_limit must be non-negative")
	// ErrInvalidRelocatedMethods indicates the relocated-methods cap is negative.
	ErrInvalidRelocatedMethods = errors.New("relocator.max_relocated_methods_per_class must be non-negative")
	// ErrNegativeWeight indicates a minimizer weight is negative.
	ErrNegativeWeight = errors.New("minimizer weights must be non-negative")
	// ErrInvalidGOGC indicates the GOGC value is negative.
	ErrInvalidGOGC = errors.New("runtime.gogc must be non-negative")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	err := c.validateContainer()
	if err != nil {
		return err
	}

	err = c.validateMinimizer()
	if err != nil {
		return err
	}

	return c.validateRelocator()
}

func (c *Config) validateContainer() error {
	if c.Container.MethodRefsLimit <= 0 {
		return ErrInvalidMethodRefsLimit
	}

	if c.Container.FieldRefsLimit <= 0 {
		return ErrInvalidFieldRefsLimit
	}

	if c.Container.TypeRefsLimit <= 0 {
		return ErrInvalidTypeRefsLimit
	}

	if c.Container.LinearAllocLimit < 0 {
		return ErrInvalidLinearAllocLimit
	}

	return nil
}

func (c *Config) validateMinimizer() error {
	m := c.Minimizer

	weights := []float64{
		m.MethodRefWeight, m.FieldRefWeight, m.TypeRefWeight, m.StringRefWeight,
		m.MethodSeedWeight, m.FieldSeedWeight, m.TypeSeedWeight, m.StringSeedWeight,
	}

	for _, w := range weights {
		if w < 0 {
			return ErrNegativeWeight
		}
	}

	return nil
}

func (c *Config) validateRelocator() error {
	if c.Relocator.MaxRelocatedMethodsPerClass < 0 {
		return ErrInvalidRelocatedMethods
	}

	if c.Runtime.GOGC < 0 {
		return ErrInvalidGOGC
	}

	return nil
}
