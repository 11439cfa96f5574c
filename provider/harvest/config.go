package harvest

import (
	"fmt"
	"time"

	"github.com/au-research/ANDS-ResearchVocabularies-Toolkit/task"
)

// Source types the harvest provider understands.
const (
	SourcePoolParty = "poolparty"
	SourceSPARQL    = "sparql"
	SourceFile      = "file"
)

// Config keys read from the subtask configuration.
const (
	ConfigSourceType = "source_type"
	ConfigAPIURL     = "api_url"
	ConfigUsername   = "username"
	ConfigPassword   = "password"
	ConfigProjectID  = "project_id"
	ConfigFormat     = "format"
	ConfigEndpoint   = "endpoint"
	ConfigQuery      = "query"
	ConfigPath       = "path"
	ConfigTimeout    = "timeout"
)

// Config is the parsed harvest configuration.
type Config struct {
	SourceType string

	// PoolParty
	APIURL    string
	Username  string
	Password  string
	ProjectID string
	Format    string

	// SPARQL
	Endpoint string
	Query    string

	// Local file
	Path string

	Timeout time.Duration
}

// parseConfig extracts and validates harvest configuration from a subtask
// spec. A missing or invalid key fails the step, never the run.
func parseConfig(spec task.SubtaskSpec) (Config, error) {
	cfg := Config{Timeout: 30 * time.Second}

	sourceType, ok := spec.ConfigValue(ConfigSourceType)
	if !ok {
		return cfg, fmt.Errorf("missing required config key %q", ConfigSourceType)
	}
	cfg.SourceType = sourceType

	if raw, ok := spec.ConfigValue(ConfigTimeout); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid %q: %v", ConfigTimeout, err)
		}
		cfg.Timeout = d
	}

	switch sourceType {
	case SourcePoolParty:
		if cfg.APIURL, ok = spec.ConfigValue(ConfigAPIURL); !ok {
			return cfg, fmt.Errorf("missing required config key %q", ConfigAPIURL)
		}
		if cfg.ProjectID, ok = spec.ConfigValue(ConfigProjectID); !ok {
			return cfg, fmt.Errorf("missing required config key %q", ConfigProjectID)
		}
		cfg.Username, _ = spec.ConfigValue(ConfigUsername)
		cfg.Password, _ = spec.ConfigValue(ConfigPassword)
		cfg.Format, _ = spec.ConfigValue(ConfigFormat)
		if cfg.Format == "" {
			cfg.Format = "application/json"
		}
	case SourceSPARQL:
		if cfg.Endpoint, ok = spec.ConfigValue(ConfigEndpoint); !ok {
			return cfg, fmt.Errorf("missing required config key %q", ConfigEndpoint)
		}
		if cfg.Query, ok = spec.ConfigValue(ConfigQuery); !ok {
			return cfg, fmt.Errorf("missing required config key %q", ConfigQuery)
		}
	case SourceFile:
		if cfg.Path, ok = spec.ConfigValue(ConfigPath); !ok {
			return cfg, fmt.Errorf("missing required config key %q", ConfigPath)
		}
	default:
		return cfg, fmt.Errorf("unknown source type %q", sourceType)
	}
	return cfg, nil
}
