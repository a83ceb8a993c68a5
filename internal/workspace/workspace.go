package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonCodexMissing     Reason = "codex_missing"
	ReasonConfigMissing    Reason = "config_missing"
	ReasonConfigUnreadable Reason = "config_unreadable"
	ReasonConfigInvalid    Reason = "config_invalid"
)

func (r Reason) String() string {
	switch r {
	case ReasonCodexMissing:
		return "codex home does not exist"
	case ReasonConfigMissing:
		return "config.toml does not exist"
	case ReasonConfigUnreadable:
		return "config.toml cannot be read"
	case ReasonConfigInvalid:
		return "config.toml cannot be parsed"
	default:
		return "available"
	}
}

// Status describes whether a Codex home can be browsed.
type Status struct {
	CodexHome  string `json:"codexHome"`
	ConfigPath string `json:"configPath"`
	Available  bool   `json:"available"`
	Reason     Reason `json:"reason,omitempty"`
	// Err holds the underlying read or parse error, if any.
	Err error `json:"-"`
}

// Label is the one-line message shown in place of the history when the
// workspace is unavailable.
func (s Status) Label() string {
	if s.Available {
		return "workspace available: " + s.CodexHome
	}
	return "workspace not configured: " + s.Reason.String()
}

func ConfigPath(codexHome string) string {
	return filepath.Join(codexHome, "config.toml")
}

// Check inspects codexHome and its config.toml.
func Check(codexHome string) Status {
	st := Status{CodexHome: codexHome, ConfigPath: ConfigPath(codexHome)}

	if info, err := os.Stat(codexHome); err != nil || !info.IsDir() {
		st.Reason = ReasonCodexMissing
		st.Err = err
		return st
	}

	data, err := os.ReadFile(st.ConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			st.Reason = ReasonConfigMissing
		} else {
			st.Reason = ReasonConfigUnreadable
		}
		st.Err = err
		return st
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		st.Reason = ReasonConfigInvalid
		st.Err = fmt.Errorf("parse %s: %w", st.ConfigPath, err)
		return st
	}

	st.Available = true
	return st
}
