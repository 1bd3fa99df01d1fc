package policy

import (
	"strings"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
)

// CheckCommandAllowed reports whether commandPath (without the binary name)
// may run under the allowlist. An entry naming a command group such as
// "pipeline" allows every command under it. An empty allowlist allows all.
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		entry := normalize(allowed)
		if entry == "" {
			continue
		}
		if entry == normPath || strings.HasPrefix(normPath, entry+" ") {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command blocked by --enable-commands policy")
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
