package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"localagent/pkg/capability"
	"localagent/pkg/request"
)

// ErrProtectedPath is returned when a modifying request targets a path
// beneath one of the protected roots.
var ErrProtectedPath = errors.New("path is protected")

// pathParams are the parameter names that carry filesystem targets.
var pathParams = []string{"path", "from_path", "to_path", "output", "repo", "database"}

// writeParams name write destinations; they are checked at every tier.
var writeParams = map[string]bool{"to_path": true, "output": true, "database": true}

// ProtectedPaths rejects requests whose path parameters resolve inside any
// of roots. Sources of safe (read-only) requests pass; write destinations
// never do. Symbolic links are resolved on both sides, so a link pointing
// into a protected root is treated as the root itself.
func ProtectedPaths(roots []string) Policy {
	cleaned := make([]string, 0, len(roots))
	for _, root := range roots {
		if root == "" {
			continue
		}
		absolute, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		cleaned = append(cleaned, absolute)
		if resolved := resolve(absolute); resolved != absolute {
			cleaned = append(cleaned, resolved)
		}
	}

	return func(req request.CommandRequest, tier capability.Tier) error {
		if len(cleaned) == 0 {
			return nil
		}
		for _, key := range pathParams {
			if tier < capability.TierMedium && !writeParams[key] {
				continue
			}
			target, ok := req.Params[key].(string)
			if !ok || target == "" {
				continue
			}
			absolute, err := filepath.Abs(target)
			if err != nil {
				continue
			}
			resolved := resolve(absolute)
			for _, root := range cleaned {
				if within(root, absolute) || within(root, resolved) {
					return fmt.Errorf("%s '%s' for '%s': %w", key, target, req.Name, ErrProtectedPath)
				}
			}
		}
		return nil
	}
}

func within(root, target string) bool {
	relative, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return relative == "." || (relative != ".." && !strings.HasPrefix(relative, ".."+string(filepath.Separator)))
}

// resolve evaluates symbolic links in the longest existing prefix of the
// absolute path and re-attaches the components that do not exist yet.
func resolve(absolute string) string {
	existing, rest := absolute, ""
	for {
		if resolved, err := filepath.EvalSymlinks(existing); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return absolute
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}
