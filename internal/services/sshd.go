package services

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// EnsureSSHDPort adds or removes a `Port <port>` directive in sshd_config
// and restarts sshd only when the file actually changed. Returns whether a
// change was made.
func (m *Manager) EnsureSSHDPort(ctx context.Context, port int, listen bool) (bool, error) {
	data, err := os.ReadFile(m.SSHDConfigPath)
	if err != nil {
		return false, fmt.Errorf("read sshd config: %w", err)
	}
	content := string(data)

	directive := fmt.Sprintf("Port %d", port)
	pattern := regexp.MustCompile(fmt.Sprintf(`(?m)^[ \t]*Port[ \t]+%d[ \t]*$`, port))
	exists := pattern.MatchString(content)

	changed := false
	switch {
	case listen && !exists:
		if !strings.HasSuffix(content, "\n") && content != "" {
			content += "\n"
		}
		content += directive + "\n"
		changed = true
	case !listen && exists:
		content = pattern.ReplaceAllString(content, "")
		content = collapseBlankLines(content)
		changed = true
	}

	if !changed {
		return false, nil
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(m.SSHDConfigPath); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(m.SSHDConfigPath, []byte(content), mode); err != nil {
		return false, fmt.Errorf("write sshd config: %w", err)
	}

	if _, err := m.runner.Run(ctx, "systemctl", "restart", m.SSHDUnit); err != nil {
		return true, fmt.Errorf("restart %s: %w", m.SSHDUnit, err)
	}
	return true, nil
}

// collapseBlankLines removes the doubled blank lines that deleting a
// directive leaves behind.
func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
