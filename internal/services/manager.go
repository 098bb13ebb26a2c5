// Package services controls the auxiliary tunnel daemons (stunnel, dropbear,
// x-ui) through systemd and their configuration files.
package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tunnelpanel/tunnelpanel/internal/config"
	"github.com/tunnelpanel/tunnelpanel/internal/crypto"
	"github.com/tunnelpanel/tunnelpanel/internal/sysuser"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusInactive     Status = "inactive"
	StatusNotInstalled Status = "not_installed"
)

const (
	KindStunnel  = "stunnel"
	KindDropbear = "dropbear"
	KindV2Ray    = "v2ray"
)

type Manager struct {
	runner  sysuser.Runner
	catalog config.ServiceCatalog

	SSHDConfigPath      string
	SSHDUnit            string
	StunnelConfPath     string
	StunnelPEMPath      string
	StunnelDefaultPath  string
	DropbearDefaultPath string
	XrayBinaryPath      string
}

func NewManager(runner sysuser.Runner, catalog config.ServiceCatalog) *Manager {
	return &Manager{
		runner:              runner,
		catalog:             catalog,
		SSHDConfigPath:      "/etc/ssh/sshd_config",
		SSHDUnit:            "sshd",
		StunnelConfPath:     "/etc/stunnel/stunnel.conf",
		StunnelPEMPath:      "/etc/stunnel/stunnel.pem",
		StunnelDefaultPath:  "/etc/default/stunnel4",
		DropbearDefaultPath: "/etc/default/dropbear",
		XrayBinaryPath:      "/usr/bin/x-ui",
	}
}

func (m *Manager) unit(kind string) (string, error) {
	spec, ok := m.catalog.Lookup(kind)
	if !ok {
		return "", fmt.Errorf("unknown service kind %q", kind)
	}
	return spec.Unit, nil
}

// Enable configures and (re)starts the service. Safe to call repeatedly: the
// configuration is rewritten and the unit restarted each time, converging to
// the same running state.
func (m *Manager) Enable(ctx context.Context, kind string, port int) error {
	unit, err := m.unit(kind)
	if err != nil {
		return err
	}

	switch kind {
	case KindStunnel:
		return m.enableStunnel(ctx, unit, port)
	case KindDropbear:
		return m.enableDropbear(ctx, unit, port)
	case KindV2Ray:
		if _, err := m.runner.Run(ctx, "systemctl", "enable", "--now", unit); err != nil {
			return fmt.Errorf("enable %s: %w", unit, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown service kind %q", kind)
	}
}

// Disable stops the service. For stunnel, restoreSSHD re-adds the Port
// directive the enable path removed from sshd_config; left unset, sshd keeps
// whatever configuration it has.
func (m *Manager) Disable(ctx context.Context, kind string, port int, restoreSSHD bool) error {
	unit, err := m.unit(kind)
	if err != nil {
		return err
	}

	switch kind {
	case KindStunnel:
		if _, err := m.runner.Run(ctx, "systemctl", "stop", unit); err != nil {
			return fmt.Errorf("stop %s: %w", unit, err)
		}
		if restoreSSHD {
			if _, err := m.EnsureSSHDPort(ctx, port, true); err != nil {
				return fmt.Errorf("restore sshd port %d: %w", port, err)
			}
		}
		return nil
	case KindDropbear:
		if err := m.setDefaultsLine(m.DropbearDefaultPath, "NO_START", "1"); err != nil {
			return fmt.Errorf("disable dropbear: %w", err)
		}
		if _, err := m.runner.Run(ctx, "systemctl", "stop", unit); err != nil {
			return fmt.Errorf("stop %s: %w", unit, err)
		}
		return nil
	case KindV2Ray:
		if _, err := m.runner.Run(ctx, "systemctl", "disable", "--now", unit); err != nil {
			return fmt.Errorf("disable %s: %w", unit, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown service kind %q", kind)
	}
}

// Status reads the live unit state. `systemctl is-active` exits non-zero for
// anything but "active"; that counts as inactive, not as an error. An error
// is returned only when the probe itself could not run.
func (m *Manager) Status(ctx context.Context, kind string) (Status, error) {
	unit, err := m.unit(kind)
	if err != nil {
		return StatusInactive, err
	}

	if kind == KindV2Ray {
		if _, err := os.Stat(m.XrayBinaryPath); err != nil {
			return StatusNotInstalled, nil
		}
	}

	out, runErr := m.runner.Run(ctx, "systemctl", "is-active", unit)
	state := strings.TrimSpace(out)
	if state == "active" {
		return StatusActive, nil
	}
	if runErr != nil && state == "" {
		return StatusInactive, fmt.Errorf("is-active %s: %w", unit, runErr)
	}
	return StatusInactive, nil
}

// enableStunnel follows a strict order: free the port from sshd first, then
// regenerate the certificate, write the config, enable the daemon and
// restart it. Starting before sshd releases the port risks a bind failure.
func (m *Manager) enableStunnel(ctx context.Context, unit string, port int) error {
	changed, err := m.EnsureSSHDPort(ctx, port, false)
	if err != nil {
		return fmt.Errorf("free port %d from sshd: %w", port, err)
	}
	if changed {
		log.Printf("services: removed sshd Port %d directive for stunnel", port)
	}

	if err := crypto.GenerateStunnelCert(m.StunnelPEMPath); err != nil {
		return fmt.Errorf("stunnel certificate: %w", err)
	}

	conf := fmt.Sprintf(`pid = /var/run/stunnel4/stunnel.pid
output = /var/log/stunnel4/stunnel.log
cert = %s
client = no

[ssh-ssl]
accept = %d
connect = 127.0.0.1:22
`, m.StunnelPEMPath, port)
	if err := os.WriteFile(m.StunnelConfPath, []byte(conf), 0644); err != nil {
		return fmt.Errorf("write stunnel config: %w", err)
	}

	if err := m.setDefaultsLine(m.StunnelDefaultPath, "ENABLED", "1"); err != nil {
		return fmt.Errorf("enable stunnel daemon: %w", err)
	}

	if _, err := m.runner.Run(ctx, "systemctl", "restart", unit); err != nil {
		return fmt.Errorf("restart %s: %w", unit, err)
	}
	return nil
}

func (m *Manager) enableDropbear(ctx context.Context, unit string, port int) error {
	if err := m.setDefaultsLine(m.DropbearDefaultPath, "NO_START", "0"); err != nil {
		return fmt.Errorf("enable dropbear daemon: %w", err)
	}
	if err := m.setDefaultsLine(m.DropbearDefaultPath, "DROPBEAR_PORT", fmt.Sprintf("%d", port)); err != nil {
		return fmt.Errorf("set dropbear port: %w", err)
	}
	if _, err := m.runner.Run(ctx, "systemctl", "restart", unit); err != nil {
		return fmt.Errorf("restart %s: %w", unit, err)
	}
	return nil
}

// setDefaultsLine replaces a KEY=value line in an /etc/default file,
// appending it when absent. Missing files are created.
func (m *Manager) setDefaultsLine(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}

	line := key + "=" + value
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	replaced := false
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), key+"=") {
			lines[i] = line
			replaced = true
		}
	}
	if !replaced {
		if len(lines) == 1 && lines[0] == "" {
			lines[0] = line
		} else {
			lines = append(lines, line)
		}
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
