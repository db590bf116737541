package config

import (
	"os"
	"reflect"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	environmentENV = "ENVIRONMENT"
	configFileENV  = "CONFIG_FILE"

	defaultConfigFile = "/config/extrasync.yaml"
)

// Path comparison modes.
const (
	PathComparisonAuto  = "auto"
	PathComparisonExact = "exact"
	PathComparisonFold  = "fold"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" required:"true"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`

	// ExtraFileExtensions is the comma separated list of companion files
	// that are carried along when an episode is imported.
	ExtraFileExtensions string `koanf:"extra_file_extensions" default:"srt,nfo"`
	ImportExtraFiles    bool   `koanf:"import_extra_files" default:"true"`
	CopyUsingHardlinks  bool   `koanf:"copy_using_hardlinks" default:"true"`
	MetadataConsumers   string `koanf:"metadata_consumers" default:"kodi,mediabrowser"`
	PathComparison      string `koanf:"path_comparison" default:"auto"`

	HousekeepingSchedule string        `koanf:"housekeeping_schedule" default:"@every 24h"`
	JobRetention         time.Duration `koanf:"job_retention" default:"168h"`
	ScanConcurrency      int           `koanf:"scan_concurrency" default:"4"`
	WorkerPollInterval   time.Duration `koanf:"worker_poll_interval" default:"5s"`
	WorkerProcesses      int           `koanf:"worker_processes" default:"2"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	// Environment variables win over the file. Keys are matched by their
	// lower-cased name, so DATABASE_FILE_PATH sets database_file_path.
	err := k.Load(env.Provider("", ".", strings.ToLower), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := checkRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a configuration suitable for tests, with an in-memory
// database and no file or environment lookups.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	loadTestConfig(cfg)
	return cfg
}

// WantedExtensions returns ExtraFileExtensions as lower-case extensions with
// a leading dot, e.g. "srt, .NFO" becomes [".srt", ".nfo"].
func (cfg *Config) WantedExtensions() []string {
	exts := make([]string, 0)
	for _, e := range strings.Split(cfg.ExtraFileExtensions, ",") {
		e = strings.Trim(e, " .")
		if e == "" {
			continue
		}
		exts = append(exts, "."+strings.ToLower(e))
	}
	return exts
}

// EnabledMetadataConsumers returns the lower-case names listed in
// MetadataConsumers.
func (cfg *Config) EnabledMetadataConsumers() []string {
	names := make([]string, 0)
	for _, n := range strings.Split(cfg.MetadataConsumers, ",") {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// FoldPaths reports whether paths should be compared case-insensitively.
func (cfg *Config) FoldPaths() bool {
	switch cfg.PathComparison {
	case PathComparisonFold:
		return true
	case PathComparisonExact:
		return false
	}
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

func checkRequired(cfg *Config) error {
	missing := make([]string, 0)

	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("required") != "true" {
			continue
		}
		if !v.Field(i).IsZero() {
			continue
		}
		key := toSnakeCase(field.Name)
		missing = append(missing, strings.ToUpper(key)+" (config key "+key+")")
	}

	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
