package state

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tunectl/tunectl/pkg/tune/execx"
	"github.com/tunectl/tunectl/pkg/tune/journal"
)

// utilityTimeout bounds a single native-utility invocation. The utilities
// are expected to answer in well under a second; anything slower is stuck.
const utilityTimeout = 30 * time.Second

// CmdRegistry drives the native registry utility through the process
// executor. The tool path is resolved once at construction.
type CmdRegistry struct {
	runner *execx.Runner
	tool   string
}

// NewCmdRegistry resolves the registry utility and returns a CmdRegistry.
// An explicit toolPath is preferred; "reg" on PATH is the fallback.
func NewCmdRegistry(runner *execx.Runner, toolPath string) (*CmdRegistry, error) {
	tool, err := execx.Resolve(toolPath, "reg", "reg.exe")
	if err != nil {
		return nil, fmt.Errorf("locating registry utility: %w", err)
	}
	return &CmdRegistry{runner: runner, tool: tool}, nil
}

func (r *CmdRegistry) run(ctx context.Context, args ...string) (execx.Result, error) {
	return r.runner.Run(ctx, execx.Command{
		Path:    r.tool,
		Args:    args,
		Timeout: utilityTimeout,
	}, nil)
}

// EnsureKey creates the key; the utility succeeds when it already exists.
func (r *CmdRegistry) EnsureKey(ctx context.Context, path string) error {
	res, err := r.run(ctx, "add", path, "/f")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("creating key %s: %s", path, firstLine(res.Stderr))
	}
	return nil
}

// valueLine matches "    Name    REG_DWORD    0x1" style query output.
var valueLine = regexp.MustCompile(`^\s*(\S+)\s+(REG_\S+)\s+(.*)$`)

// GetValue queries the value and maps the reported type to a snapshot.
func (r *CmdRegistry) GetValue(ctx context.Context, path, name string) (journal.Snapshot, error) {
	res, err := r.run(ctx, "query", path, "/v", name)
	if err != nil {
		return journal.Absent(), err
	}
	if res.ExitCode != 0 {
		// The utility exits non-zero both for a missing value and for a
		// missing key; either way the value does not exist.
		return journal.Absent(), nil
	}
	for _, line := range res.Stdout {
		m := valueLine.FindStringSubmatch(line)
		if m == nil || !strings.EqualFold(m[1], name) {
			continue
		}
		kind, data := m[2], strings.TrimSpace(m[3])
		if strings.EqualFold(kind, "REG_DWORD") || strings.EqualFold(kind, "REG_QWORD") {
			n, err := strconv.ParseInt(strings.TrimPrefix(data, "0x"), 16, 64)
			if err != nil {
				return journal.Absent(), fmt.Errorf("parsing numeric value %q: %w", data, err)
			}
			return journal.Int(n), nil
		}
		return journal.String(data), nil
	}
	return journal.Absent(), nil
}

// SetDWord writes a numeric value.
func (r *CmdRegistry) SetDWord(ctx context.Context, path, name string, value int64) error {
	res, err := r.run(ctx, "add", path, "/v", name, "/t", "REG_DWORD", "/d", strconv.FormatInt(value, 10), "/f")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("writing %s\\%s: %s", path, name, firstLine(res.Stderr))
	}
	return nil
}

// SetString writes a string value.
func (r *CmdRegistry) SetString(ctx context.Context, path, name, value string) error {
	res, err := r.run(ctx, "add", path, "/v", name, "/t", "REG_SZ", "/d", value, "/f")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("writing %s\\%s: %s", path, name, firstLine(res.Stderr))
	}
	return nil
}

// DeleteValue removes the value; a missing value is treated as success.
func (r *CmdRegistry) DeleteValue(ctx context.Context, path, name string) error {
	res, err := r.run(ctx, "delete", path, "/v", name, "/f")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		current, getErr := r.GetValue(ctx, path, name)
		if getErr == nil && current.IsAbsent() {
			return nil
		}
		return fmt.Errorf("deleting %s\\%s: %s", path, name, firstLine(res.Stderr))
	}
	return nil
}

// CmdServices drives the native service control utility.
type CmdServices struct {
	runner *execx.Runner
	tool   string
}

// NewCmdServices resolves the service utility and returns a CmdServices.
func NewCmdServices(runner *execx.Runner, toolPath string) (*CmdServices, error) {
	tool, err := execx.Resolve(toolPath, "sc", "sc.exe")
	if err != nil {
		return nil, fmt.Errorf("locating service utility: %w", err)
	}
	return &CmdServices{runner: runner, tool: tool}, nil
}

func (s *CmdServices) run(ctx context.Context, args ...string) (execx.Result, error) {
	return s.runner.Run(ctx, execx.Command{
		Path:    s.tool,
		Args:    args,
		Timeout: utilityTimeout,
	}, nil)
}

// Query parses "sc query" and "sc qc" output into a snapshot.
func (s *CmdServices) Query(ctx context.Context, name string) (journal.ServiceState, error) {
	var out journal.ServiceState

	res, err := s.run(ctx, "query", name)
	if err != nil {
		return out, err
	}
	if res.ExitCode != 0 {
		return out, fmt.Errorf("%w: service %s", ErrNotFound, name)
	}
	out.Status = parseStatus(res.Stdout)

	res, err = s.run(ctx, "qc", name)
	if err != nil {
		return out, err
	}
	if res.ExitCode != 0 {
		return out, fmt.Errorf("querying config of %s: %s", name, firstLine(res.Stderr))
	}
	out.StartupType = parseStartupType(res.Stdout)
	return out, nil
}

// SetStartupType reconfigures how the service starts.
func (s *CmdServices) SetStartupType(ctx context.Context, name string, t journal.StartupType) error {
	mode := map[journal.StartupType]string{
		journal.StartupAutomatic: "auto",
		journal.StartupManual:    "demand",
		journal.StartupDisabled:  "disabled",
	}[t]
	if mode == "" {
		return fmt.Errorf("unknown startup type %q", t)
	}
	// "sc config" requires the space after "start=".
	res, err := s.run(ctx, "config", name, "start=", mode)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("configuring %s: %s", name, firstLine(res.Stderr))
	}
	return nil
}

// Start starts the service; an already-running service is a no-op.
func (s *CmdServices) Start(ctx context.Context, name string) error {
	res, err := s.run(ctx, "start", name)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		state, qerr := s.Query(ctx, name)
		if qerr == nil && state.Status == journal.StatusRunning {
			return nil
		}
		return fmt.Errorf("starting %s: %s", name, firstLine(res.Stderr))
	}
	return nil
}

// Stop stops the service; an already-stopped service is a no-op.
func (s *CmdServices) Stop(ctx context.Context, name string) error {
	res, err := s.run(ctx, "stop", name)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		state, qerr := s.Query(ctx, name)
		if qerr == nil && state.Status == journal.StatusStopped {
			return nil
		}
		return fmt.Errorf("stopping %s: %s", name, firstLine(res.Stderr))
	}
	return nil
}

func parseStatus(lines []string) journal.ServiceStatus {
	for _, line := range lines {
		if !strings.Contains(line, "STATE") {
			continue
		}
		if strings.Contains(line, "RUNNING") {
			return journal.StatusRunning
		}
		return journal.StatusStopped
	}
	return journal.StatusStopped
}

func parseStartupType(lines []string) journal.StartupType {
	for _, line := range lines {
		if !strings.Contains(line, "START_TYPE") {
			continue
		}
		switch {
		case strings.Contains(line, "AUTO_START"):
			return journal.StartupAutomatic
		case strings.Contains(line, "DISABLED"):
			return journal.StartupDisabled
		default:
			return journal.StartupManual
		}
	}
	return journal.StartupManual
}

// CmdPower drives the native power configuration utility.
type CmdPower struct {
	runner *execx.Runner
	tool   string
}

// NewCmdPower resolves the power utility and returns a CmdPower.
func NewCmdPower(runner *execx.Runner, toolPath string) (*CmdPower, error) {
	tool, err := execx.Resolve(toolPath, "powercfg", "powercfg.exe")
	if err != nil {
		return nil, fmt.Errorf("locating power utility: %w", err)
	}
	return &CmdPower{runner: runner, tool: tool}, nil
}

// schemeGUID matches the scheme identifier in /getactivescheme output.
var schemeGUID = regexp.MustCompile(`[0-9a-fA-F]{8}(-[0-9a-fA-F]{4}){3}-[0-9a-fA-F]{12}`)

// ActiveScheme returns the GUID of the active power scheme.
func (p *CmdPower) ActiveScheme(ctx context.Context) (string, error) {
	res, err := p.runner.Run(ctx, execx.Command{
		Path:    p.tool,
		Args:    []string{"/getactivescheme"},
		Timeout: utilityTimeout,
	}, nil)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("querying active scheme: %s", firstLine(res.Stderr))
	}
	for _, line := range res.Stdout {
		if m := schemeGUID.FindString(line); m != "" {
			return strings.ToLower(m), nil
		}
	}
	return "", fmt.Errorf("no scheme GUID in utility output")
}

// SetActiveScheme activates the scheme with the given GUID.
func (p *CmdPower) SetActiveScheme(ctx context.Context, id string) error {
	res, err := p.runner.Run(ctx, execx.Command{
		Path:    p.tool,
		Args:    []string{"/setactive", id},
		Timeout: utilityTimeout,
	}, nil)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("activating scheme %s: %s", id, firstLine(res.Stderr))
	}
	return nil
}

func firstLine(lines []string) string {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return strings.TrimSpace(l)
		}
	}
	return "no output"
}
