package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for an ingestion run.
// Values come from an optional YAML file with environment variable overrides;
// every field has a default so the tool runs with no file at all.
// Secrets (HIVE_PASSWORD) only come from the environment.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time

	// StrictExit makes `ingest run` exit non-zero when the pipeline aborts.
	StrictExit bool `yaml:"strict_exit" env:"INGEST_STRICT_EXIT" env-default:"false"`

	Source    SourceConfig    `yaml:"source"`
	Container ContainerConfig `yaml:"container"`
	HDFS      HDFSConfig      `yaml:"hdfs"`
	Hive      HiveConfig      `yaml:"hive"`
	Probe     ProbeConfig     `yaml:"probe"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Load      LoadConfig      `yaml:"load"`
	Validate  ValidateConfig  `yaml:"validate"`
	Retry     RetryConfig     `yaml:"retry"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Log       LogConfig       `yaml:"log"`
}

// SourceConfig describes the remote dataset and where it lands in the container.
type SourceConfig struct {
	URL       string `yaml:"url" env:"SOURCE_URL" env-default:"https://www2.census.gov/programs-surveys/popest/datasets/2010-2020/national/totals/nst-est2020-alldata.csv"`
	Filename  string `yaml:"filename" env:"SOURCE_FILENAME" env-default:"population_data.csv"`
	LocalPath string `yaml:"local_path" env:"SOURCE_LOCAL_PATH" env-default:"/opt/sample/population_data.csv"`
}

// ContainerConfig identifies the pre-existing container every command runs in.
type ContainerConfig struct {
	Name string `yaml:"name" env:"CONTAINER_NAME" env-default:"docker-hive-hive-server-1"`
	// Mode selects the executor: "api" talks to the Docker Engine API,
	// "cli" shells out to the docker binary.
	Mode         string        `yaml:"mode" env:"CONTAINER_EXEC_MODE" env-default:"api"`
	DockerBinary string        `yaml:"docker_binary" env:"DOCKER_BINARY" env-default:"docker"`
	ExecTimeout  time.Duration `yaml:"exec_timeout" env:"CONTAINER_EXEC_TIMEOUT" env-default:"0s"` // 0 = unbounded
}

// HDFSConfig holds the distributed storage target.
type HDFSConfig struct {
	Dir       string `yaml:"dir" env:"HDFS_DIR" env-default:"/user/hadoop/population_data/"`
	Binary    string `yaml:"binary" env:"HDFS_BINARY" env-default:"hdfs"`
	Overwrite bool   `yaml:"overwrite" env:"HDFS_OVERWRITE" env-default:"false"`
}

// HiveConfig holds the beeline connection and target table.
type HiveConfig struct {
	JDBCURL    string `yaml:"jdbc_url" env:"HIVE_JDBC_URL" env-default:"jdbc:hive2://localhost:10000/default"`
	User       string `yaml:"user" env:"HIVE_USER" env-default:""`
	Password   string `yaml:"-" env:"HIVE_PASSWORD"` // Secret - not in YAML
	Beeline    string `yaml:"beeline" env:"HIVE_BEELINE" env-default:"beeline"`
	Table      string `yaml:"table" env:"HIVE_TABLE" env-default:"population_data"`
	SkipHeader bool   `yaml:"skip_header" env:"HIVE_SKIP_HEADER" env-default:"true"`
}

// ProbeConfig controls the availability check.
type ProbeConfig struct {
	Timeout    time.Duration `yaml:"timeout" env:"PROBE_TIMEOUT" env-default:"30s"`
	MaxRetries int           `yaml:"max_retries" env:"PROBE_MAX_RETRIES" env-default:"0"`
	UserAgent  string        `yaml:"user_agent" env:"PROBE_USER_AGENT" env-default:"ekaya-ingest"`
}

// FetchConfig selects the download tool available inside the container.
type FetchConfig struct {
	Tool string `yaml:"tool" env:"FETCH_TOOL" env-default:"wget"`
}

// LoadConfig controls the LOAD DATA statement.
type LoadConfig struct {
	Overwrite bool `yaml:"overwrite" env:"LOAD_OVERWRITE" env-default:"false"`
	// SkipDuplicates skips the load when the ledger shows the same file
	// content was already loaded into the same table.
	SkipDuplicates bool `yaml:"skip_duplicates" env:"LOAD_SKIP_DUPLICATES" env-default:"true"`
}

// ValidateConfig controls the smoke-test query.
type ValidateConfig struct {
	Columns []string `yaml:"columns" env:"VALIDATE_COLUMNS" env-separator:"," env-default:"REGION,DIVISION,STATE,NAME"`
	Limit   int      `yaml:"limit" env:"VALIDATE_LIMIT" env-default:"5"`
}

// RetryConfig controls retries of transient stage failures. Zero disables retries.
type RetryConfig struct {
	MaxRetries int `yaml:"max_retries" env:"RETRY_MAX_RETRIES" env-default:"0"`
}

// LedgerConfig selects the run ledger backend: "sqlite", "postgres" or "none".
type LedgerConfig struct {
	Driver string `yaml:"driver" env:"LEDGER_DRIVER" env-default:"sqlite"`
	DSN    string `yaml:"dsn" env:"LEDGER_DSN" env-default:"ingest_ledger.db"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"`
}

// Load reads configuration from the YAML file at configPath (if it exists)
// with environment variable overrides, then validates it.
func Load(configPath, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if configPath == "" {
		configPath = DefaultPath
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", configPath, err)
	}

	cfg.normalize()

	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// normalize trims list entries that came from comma-separated env values
// and lower-cases enum settings.
func (c *Config) normalize() {
	columns := make([]string, 0, len(c.Validate.Columns))
	for _, col := range c.Validate.Columns {
		if col = strings.TrimSpace(col); col != "" {
			columns = append(columns, col)
		}
	}
	c.Validate.Columns = columns
	c.Container.Mode = strings.ToLower(strings.TrimSpace(c.Container.Mode))
	c.Fetch.Tool = strings.ToLower(strings.TrimSpace(c.Fetch.Tool))
	c.Ledger.Driver = strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if c.Ledger.Driver == "postgres" {
		c.Ledger.DSN = ResolveLedgerDSN(c.Ledger.DSN)
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Check checks the configuration for values the pipeline cannot work with.
func (c *Config) Check() error {
	u, err := url.Parse(c.Source.URL)
	if err != nil {
		return fmt.Errorf("source.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source.url must be http or https, got %q", c.Source.URL)
	}
	if c.Source.Filename == "" || strings.Contains(c.Source.Filename, "/") {
		return fmt.Errorf("source.filename must be a bare file name, got %q", c.Source.Filename)
	}
	if !path.IsAbs(c.Source.LocalPath) {
		return fmt.Errorf("source.local_path must be absolute, got %q", c.Source.LocalPath)
	}
	if c.Container.Name == "" {
		return fmt.Errorf("container.name is required")
	}
	if c.Container.Mode != "api" && c.Container.Mode != "cli" {
		return fmt.Errorf("container.mode must be \"api\" or \"cli\", got %q", c.Container.Mode)
	}
	if !path.IsAbs(c.HDFS.Dir) {
		return fmt.Errorf("hdfs.dir must be absolute, got %q", c.HDFS.Dir)
	}
	if !strings.HasPrefix(c.Hive.JDBCURL, "jdbc:hive2://") {
		return fmt.Errorf("hive.jdbc_url must start with jdbc:hive2://")
	}
	if !identifierPattern.MatchString(c.Hive.Table) {
		return fmt.Errorf("hive.table %q is not a valid identifier", c.Hive.Table)
	}
	if c.Fetch.Tool != "wget" && c.Fetch.Tool != "curl" {
		return fmt.Errorf("fetch.tool must be \"wget\" or \"curl\", got %q", c.Fetch.Tool)
	}
	if c.Validate.Limit <= 0 {
		return fmt.Errorf("validate.limit must be positive, got %d", c.Validate.Limit)
	}
	if len(c.Validate.Columns) == 0 {
		return fmt.Errorf("validate.columns must not be empty")
	}
	for _, col := range c.Validate.Columns {
		if !identifierPattern.MatchString(col) {
			return fmt.Errorf("validate.columns entry %q is not a valid identifier", col)
		}
	}
	if c.Probe.Timeout < 0 || c.Container.ExecTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Probe.MaxRetries < 0 || c.Retry.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	switch c.Ledger.Driver {
	case "sqlite", "postgres":
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger.dsn is required for driver %q", c.Ledger.Driver)
		}
	case "none", "":
	default:
		return fmt.Errorf("ledger.driver must be sqlite, postgres or none, got %q", c.Ledger.Driver)
	}
	return nil
}

// HDFSFilePath returns the full HDFS path the source file is uploaded to
// and loaded from.
func (c *Config) HDFSFilePath() string {
	return path.Join(c.HDFS.Dir, c.Source.Filename)
}

// LedgerEnabled reports whether runs are recorded.
func (c *Config) LedgerEnabled() bool {
	return c.Ledger.Driver != "" && c.Ledger.Driver != "none"
}
