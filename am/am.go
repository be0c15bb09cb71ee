package am

// Config is the resolved nrps configuration
type Config struct {
	Models      ModelsConfig      `mapstructure:"models" toml:"models" json:"models" yaml:"models"`
	Stachelhaus StachelhausConfig `mapstructure:"stachelhaus" toml:"stachelhaus" json:"stachelhaus" yaml:"stachelhaus"`
	Predict     PredictConfig     `mapstructure:"predict" toml:"predict" json:"predict" yaml:"predict"`
	Output      OutputConfig      `mapstructure:"output" toml:"output" json:"output" yaml:"output"`
	Database    DatabaseConfig    `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
}

// ModelsConfig locates classifier artifacts
type ModelsConfig struct {
	Dir     string   `mapstructure:"dir" toml:"dir" json:"dir" yaml:"dir"`
	Schemes []string `mapstructure:"schemes" toml:"schemes" json:"schemes" yaml:"schemes"` // empty = every discovered scheme
}

// StachelhausConfig configures the reference table lookup
type StachelhausConfig struct {
	Enabled    bool   `mapstructure:"enabled" toml:"enabled" json:"enabled" yaml:"enabled"`
	Signatures string `mapstructure:"signatures" toml:"signatures" json:"signatures" yaml:"signatures"` // empty = <models.dir>/signatures.tsv
	LongHits   int    `mapstructure:"long_hits" toml:"long_hits" json:"long_hits" yaml:"long_hits"`
	MinMatches int    `mapstructure:"min_matches" toml:"min_matches" json:"min_matches" yaml:"min_matches"` // 0 = always call
}

// PredictConfig configures a prediction run
type PredictConfig struct {
	Count   int `mapstructure:"count" toml:"count" json:"count" yaml:"count"`       // best-N labels per scheme
	Workers int `mapstructure:"workers" toml:"workers" json:"workers" yaml:"workers"` // 0 = physical cores
}

// OutputConfig configures rendering
type OutputConfig struct {
	Format   string `mapstructure:"format" toml:"format" json:"format" yaml:"format"`
	JSONLogs bool   `mapstructure:"json_logs" toml:"json_logs" json:"json_logs" yaml:"json_logs"`
}

// DatabaseConfig configures the results archive
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
	Save bool   `mapstructure:"save" toml:"save" json:"save" yaml:"save"` // archive every predict run
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
