// Package sysuser manages OS-level login accounts via the standard user
// administration commands. Failures at this boundary are reported, not
// exceptional: every mutation returns a bool and the underlying error is
// only logged.
package sysuser

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tunnelpanel/tunnelpanel/internal/logutil"
)

type Manager struct {
	runner Runner
}

func NewManager(runner Runner) *Manager {
	return &Manager{runner: runner}
}

// CreateAccount creates a login user with a home directory and bash shell,
// then sets its password via chpasswd.
func (m *Manager) CreateAccount(ctx context.Context, username, password string) bool {
	if _, err := m.runner.Run(ctx, "useradd", "-m", "-s", "/bin/bash", username); err != nil {
		log.Printf("sysuser: create %s failed: %v", logutil.SanitizeForLog(username), err)
		return false
	}
	// Password goes over stdin so it never appears in a process listing.
	if _, err := m.runner.RunInput(ctx, fmt.Sprintf("%s:%s\n", username, password), "chpasswd"); err != nil {
		log.Printf("sysuser: set password for %s failed: %v", logutil.SanitizeForLog(username), err)
		return false
	}
	return true
}

// DeleteAccount removes the user and its home directory.
func (m *Manager) DeleteAccount(ctx context.Context, username string) bool {
	if _, err := m.runner.Run(ctx, "userdel", "-r", username); err != nil {
		log.Printf("sysuser: delete %s failed: %v", logutil.SanitizeForLog(username), err)
		return false
	}
	return true
}

// SetLocked locks (usermod -L) or unlocks (usermod -U) the account.
func (m *Manager) SetLocked(ctx context.Context, username string, locked bool) bool {
	flag := "-U"
	if locked {
		flag = "-L"
	}
	if _, err := m.runner.Run(ctx, "usermod", flag, username); err != nil {
		log.Printf("sysuser: set locked=%v for %s failed: %v", locked, logutil.SanitizeForLog(username), err)
		return false
	}
	return true
}

// CountActiveSessions counts the user's logged-in terminal sessions from
// `who` output. Any failure reads as zero sessions.
func (m *Manager) CountActiveSessions(ctx context.Context, username string) int {
	out, err := m.runner.Run(ctx, "who")
	if err != nil {
		return 0
	}
	count := 0
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == username {
			count++
		}
	}
	return count
}
