package wasivfs

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasi-vfs/errors"
)

// MappedDirectory is a host directory made visible inside the sandbox.
//
// Host must name an existing directory when the filesystem is composed.
// Guest may be absolute or relative; relative guest paths are rooted at "/".
type MappedDirectory struct {
	Host     string
	Guest    string
	ReadOnly bool
}

func (m MappedDirectory) String() string {
	s := m.Host + ":" + m.Guest
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// ParseMappedDirectory parses "host:guest[:ro|:rw]". A bare "host" maps the
// directory to the same path inside the sandbox.
func ParseMappedDirectory(s string) (MappedDirectory, error) {
	if s == "" {
		return MappedDirectory{}, errors.InvalidInput(errors.PhaseConfig, "empty directory mapping")
	}

	parts := strings.Split(s, ":")
	var m MappedDirectory
	switch len(parts) {
	case 1:
		m = MappedDirectory{Host: parts[0], Guest: parts[0]}
	case 2:
		m = MappedDirectory{Host: parts[0], Guest: parts[1]}
	case 3:
		m = MappedDirectory{Host: parts[0], Guest: parts[1]}
		switch parts[2] {
		case "ro":
			m.ReadOnly = true
		case "rw":
		default:
			return MappedDirectory{}, errors.InvalidInput(errors.PhaseConfig,
				fmt.Sprintf("mapping %q: unknown mode %q (want ro or rw)", s, parts[2]))
		}
	default:
		return MappedDirectory{}, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("mapping %q: too many ':' separators", s))
	}

	if m.Host == "" || m.Guest == "" {
		return MappedDirectory{}, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("mapping %q: host and guest must not be empty", s))
	}
	return m, nil
}
