package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".interdex"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for interdex settings.
const envPrefix = "INTERDEX"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// When no config file is found in the search paths, defaults are used; an
// explicit configPath that cannot be read is an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	return finishLoad(viperCfg)
}

// DefaultConfig returns a Config built entirely from defaults, with no file
// or environment layer. Callers that already have their overrides in hand
// (e.g. the MCP tool, tests) start here rather than round-tripping through
// a temp file.
func DefaultConfig() (*Config, error) {
	viperCfg := viper.New()
	applyDefaults(viperCfg)

	return finishLoad(viperCfg)
}

// LoadFromBytes decodes raw config data (in the given viper-supported
// format, e.g. "yaml" or "json") layered on top of defaults, schema-checks,
// and validates it. Used by the MCP tool to accept inline config overrides
// without touching the filesystem.
func LoadFromBytes(raw []byte, format string) (*Config, error) {
	viperCfg := viper.New()
	applyDefaults(viperCfg)
	viperCfg.SetConfigType(format)

	if len(raw) > 0 {
		readErr := viperCfg.ReadConfig(bytes.NewReader(raw))
		if readErr != nil {
			return nil, fmt.Errorf("%w: read inline config: %v", ErrConfigViolation, readErr)
		}
	}

	return finishLoad(viperCfg)
}

// finishLoad runs the schema check, struct unmarshal, and semantic
// validation shared by every loading path.
func finishLoad(viperCfg *viper.Viper) (*Config, error) {
	schemaErr := validateAgainstSchema(viperCfg.AllSettings())
	if schemaErr != nil {
		return nil, schemaErr
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("%w: validate config: %w", ErrConfigViolation, validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("container.method_refs_limit", DefaultMethodRefsLimit)
	viperCfg.SetDefault("container.field_refs_limit", DefaultFieldRefsLimit)
	viperCfg.SetDefault("container.type_refs_limit", DefaultTypeRefsLimit)
	viperCfg.SetDefault("container.linear_alloc_limit", DefaultLinearAllocLimit)
	viperCfg.SetDefault("container.force_single_dex", DefaultForceSingleDex)
	viperCfg.SetDefault("container.normal_primary_dex", DefaultNormalPrimaryDex)
	viperCfg.SetDefault("container.keep_primary_order", DefaultKeepPrimaryOrder)
	viperCfg.SetDefault("container.static_prune_classes", DefaultStaticPruneClasses)
	viperCfg.SetDefault("container.emit_canaries", DefaultEmitCanaries)
	viperCfg.SetDefault("container.sort_remaining_classes", DefaultSortRemainingClasses)

	viperCfg.SetDefault("minimizer.enabled", DefaultMinimizerEnabled)
	viperCfg.SetDefault("minimizer.method_ref_weight", DefaultMethodRefWeight)
	viperCfg.SetDefault("minimizer.field_ref_weight", DefaultFieldRefWeight)
	viperCfg.SetDefault("minimizer.type_ref_weight", DefaultTypeRefWeight)
	viperCfg.SetDefault("minimizer.string_ref_weight", DefaultStringRefWeight)
	viperCfg.SetDefault("minimizer.method_seed_weight", DefaultMethodSeedWeight)
	viperCfg.SetDefault("minimizer.field_seed_weight", DefaultFieldSeedWeight)
	viperCfg.SetDefault("minimizer.type_seed_weight", DefaultTypeSeedWeight)
	viperCfg.SetDefault("minimizer.string_seed_weight", DefaultStringSeedWeight)

	viperCfg.SetDefault("relocator.enabled", DefaultRelocatorEnabled)
	viperCfg.SetDefault("relocator.max_relocated_methods_per_class", DefaultMaxRelocatedMethodsPerClass)
	viperCfg.SetDefault("relocator.relocate_static_methods", DefaultRelocateStaticMethods)
	viperCfg.SetDefault("relocator.relocate_non_static_direct_methods", DefaultRelocateNonStaticDirectMethods)
	viperCfg.SetDefault("relocator.relocate_virtual_methods", DefaultRelocateVirtualMethods)
	viperCfg.SetDefault("relocator.relocate_non_renameable", DefaultRelocateNonRenameable)

	viperCfg.SetDefault("order.order_file", DefaultOrderFile)
	viperCfg.SetDefault("order.secondary_dex_head", DefaultSecondaryDexHead)

	viperCfg.SetDefault("runtime.memory_budget", DefaultMemoryBudget)
	viperCfg.SetDefault("runtime.gogc", DefaultGOGC)
	viperCfg.SetDefault("runtime.cache_dir", DefaultCacheDir)

	viperCfg.SetDefault("checkpoint.enabled", DefaultCheckpointEnabled)
	viperCfg.SetDefault("checkpoint.dir", DefaultCheckpointDir)
	viperCfg.SetDefault("checkpoint.clear_prev", DefaultCheckpointClearPrev)
}
