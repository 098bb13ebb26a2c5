package stats

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tunnelpanel/tunnelpanel/internal/sysuser"
)

// ServerStats is a point-in-time host health snapshot. Usage figures are
// percentages; Network is a human-readable RX/TX byte summary for the
// primary interface.
type ServerStats struct {
	CPU       float64   `json:"cpu"`
	RAM       float64   `json:"ram"`
	Disk      float64   `json:"disk"`
	Network   string    `json:"network"`
	Timestamp time.Time `json:"timestamp"`
}

// PortStatus is the live connection count for one monitored listener.
type PortStatus struct {
	Service     string `json:"service"`
	Port        int    `json:"port"`
	Connections int    `json:"connections"`
}

var monitoredPorts = []PortStatus{
	{Service: "SSH-22", Port: 22},
	{Service: "Dropbear-80", Port: 80},
	{Service: "Dropbear-443", Port: 443},
	{Service: "SSH-444", Port: 444},
}

// Collector gathers host metrics through the shared command runner. Every
// probe fails open: a broken tool yields a zero value, never an error to the
// caller, because the dashboard must stay up on a degraded host.
type Collector struct {
	runner sysuser.Runner

	// NetDevPath is overridable for tests; defaults to /proc/net/dev.
	NetDevPath string
}

func NewCollector(runner sysuser.Runner) *Collector {
	return &Collector{runner: runner, NetDevPath: "/proc/net/dev"}
}

// ServerStats collects CPU, RAM and disk usage plus network byte counters.
func (c *Collector) ServerStats(ctx context.Context) ServerStats {
	return ServerStats{
		CPU:       c.cpuUsage(ctx),
		RAM:       c.ramUsage(ctx),
		Disk:      c.diskUsage(ctx),
		Network:   c.networkSummary(),
		Timestamp: time.Now(),
	}
}

// cpuUsage sums the user and system fields from the Cpu(s) line of a single
// batch-mode top iteration.
func (c *Collector) cpuUsage(ctx context.Context) float64 {
	out, err := c.runner.Run(ctx, "top", "-bn1")
	if err != nil {
		log.Printf("stats: top: %v", err)
		return 0
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "Cpu(s)") {
			continue
		}
		// %Cpu(s):  3.2 us,  1.1 sy,  0.0 ni, 95.5 id, ...
		var total float64
		for _, field := range strings.Split(line, ",") {
			field = strings.TrimSpace(field)
			if !strings.HasSuffix(field, " us") && !strings.HasSuffix(field, " sy") {
				continue
			}
			parts := strings.Fields(field)
			if len(parts) < 2 {
				continue
			}
			if v, err := strconv.ParseFloat(parts[len(parts)-2], 64); err == nil {
				total += v
			}
		}
		return total
	}
	return 0
}

// ramUsage computes used/total from the Mem line of free(1).
func (c *Collector) ramUsage(ctx context.Context) float64 {
	out, err := c.runner.Run(ctx, "free")
	if err != nil {
		log.Printf("stats: free: %v", err)
		return 0
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "Mem:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return 0
		}
		total, err1 := strconv.ParseFloat(fields[1], 64)
		used, err2 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil || total == 0 {
			return 0
		}
		return used / total * 100.0
	}
	return 0
}

// diskUsage reads the use% column of df for the root filesystem.
func (c *Collector) diskUsage(ctx context.Context) float64 {
	out, err := c.runner.Run(ctx, "df", "-h", "/")
	if err != nil {
		log.Printf("stats: df: %v", err)
		return 0
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return 0
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 5 {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(fields[4], "%"), 64)
	if err != nil {
		return 0
	}
	return v
}

// networkSummary reads the first physical interface's RX/TX byte counters
// from /proc/net/dev.
func (c *Collector) networkSummary() string {
	data, err := os.ReadFile(c.NetDevPath)
	if err != nil {
		log.Printf("stats: read %s: %v", c.NetDevPath, err)
		return "N/A"
	}
	for _, line := range strings.Split(string(data), "\n") {
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if !strings.HasPrefix(name, "eth") && !strings.HasPrefix(name, "ens") && !strings.HasPrefix(name, "enp") {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 9 {
			continue
		}
		return fmt.Sprintf("RX: %s bytes, TX: %s bytes", fields[0], fields[8])
	}
	return "N/A"
}

// PortConnections counts established connections per monitored port. The
// count excludes the listening socket itself and clamps at zero.
func (c *Collector) PortConnections(ctx context.Context) []PortStatus {
	out := make([]PortStatus, len(monitoredPorts))
	copy(out, monitoredPorts)
	for i := range out {
		out[i].Connections = c.countPort(ctx, out[i].Port)
	}
	return out
}

func (c *Collector) countPort(ctx context.Context, port int) int {
	raw, err := c.runner.Run(ctx, "ss", "-tn", fmt.Sprintf("sport = :%d", port))
	if err != nil {
		log.Printf("stats: ss port %d: %v", port, err)
		return 0
	}
	lines := 0
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	// First line is the ss header.
	if lines <= 1 {
		return 0
	}
	return lines - 1
}
