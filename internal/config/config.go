/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

// Package config turns a YAML watch declarations file into
// []watch.Spec and nothing more. Validation stops at what a decoder
// can see: names present and unique, start vectors non-empty,
// identities resolvable.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Nehonix-Team/xywatchd/internal/watch"
)

// File is the top-level shape of a watch declarations file.
type File struct {
	PIDDir string       `yaml:"pid_dir"`
	Watch  []WatchEntry `yaml:"watches"`
}

// WatchEntry mirrors watch.Spec but with the textual identities a
// config file naturally carries (user/group names); Load resolves the
// numeric Uid/Gid the supervisor actually consumes.
type WatchEntry struct {
	Name        string   `yaml:"name"`
	Start       []string `yaml:"start"`
	Dir         string   `yaml:"dir"`
	User        string   `yaml:"user"`
	Group       string   `yaml:"group"`
	StopCommand []string `yaml:"stop_command"`
	LogDir      string   `yaml:"log_dir"`
}

// Load reads and decodes path into a PID directory and a list of
// watch.Spec, resolving User/Group to numeric Uid/Gid via the host's
// user/group database; the supervisor only ever consumes the resolved
// numeric identities.
func Load(path string) (pidDir string, specs []*watch.Spec, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Watch))
	for _, w := range f.Watch {
		if w.Name == "" {
			return "", nil, fmt.Errorf("config %s: watch with empty name", path)
		}
		if seen[w.Name] {
			return "", nil, fmt.Errorf("config %s: duplicate watch name %q", path, w.Name)
		}
		seen[w.Name] = true
		if len(w.Start) == 0 {
			return "", nil, fmt.Errorf("config %s: watch %q has empty start command", path, w.Name)
		}

		spec := &watch.Spec{
			Name:        w.Name,
			Start:       w.Start,
			Dir:         w.Dir,
			User:        w.User,
			Group:       w.Group,
			StopCommand: w.StopCommand,
			LogDir:      w.LogDir,
		}
		if uid, gid, rerr := resolveIdentity(w.User, w.Group); rerr != nil {
			return "", nil, fmt.Errorf("config %s: watch %q: %w", path, w.Name, rerr)
		} else {
			spec.Uid, spec.Gid = uid, gid
		}
		specs = append(specs, spec)
	}

	return f.PIDDir, specs, nil
}
