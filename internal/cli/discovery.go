package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wagiedev/agentwire/internal/errors"
)

const (
	// DefaultBinaryName is the executable searched for when no path is given.
	DefaultBinaryName = "claude"

	// MinimumVersion is the oldest CLI version known to speak the control protocol.
	MinimumVersion = "2.0.0"

	// VersionCheckTimeout bounds "<cli> -v".
	VersionCheckTimeout = 2 * time.Second

	// skipVersionCheckEnv disables the version check when set to any value.
	skipVersionCheckEnv = "AGENTWIRE_SKIP_VERSION_CHECK"
)

var versionPattern = regexp.MustCompile(`^([0-9]+\.[0-9]+\.[0-9]+)`)

// Config holds configuration for CLI discovery.
type Config struct {
	// CliPath is an explicit CLI path that skips the search.
	CliPath string

	// BinaryName overrides DefaultBinaryName for the PATH search.
	BinaryName string

	// SkipVersionCheck skips running the CLI to read its version.
	SkipVersionCheck bool

	// StrictVersion fails discovery with InvalidVersionError when the CLI
	// is older than MinimumVersion. Otherwise only a warning is logged.
	StrictVersion bool

	// Logger receives discovery diagnostics. If nil, nothing is logged.
	Logger *slog.Logger
}

// Discoverer locates and validates the agent CLI binary.
type Discoverer interface {
	// Discover returns the path of a usable CLI binary.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a CLI discoverer.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "cli_discovery"),
	}
}

// Discover locates the CLI binary and validates its version.
//
// Search order: Config.CliPath, then PATH, then common install locations.
// Returns CLINotFoundError listing every place searched.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	cliPath, err := d.findCLI()
	if err != nil {
		return "", err
	}

	d.log.Debug("Found agent CLI binary", "cli_path", cliPath)

	if err := d.checkVersion(ctx, cliPath); err != nil {
		return "", err
	}

	return cliPath, nil
}

func (d *discoverer) binaryName() string {
	if d.cfg.BinaryName != "" {
		return d.cfg.BinaryName
	}

	return DefaultBinaryName
}

func (d *discoverer) findCLI() (string, error) {
	if d.cfg.CliPath != "" {
		if _, err := os.Stat(d.cfg.CliPath); err != nil {
			return "", &errors.CLINotFoundError{SearchedPaths: []string{d.cfg.CliPath}, Err: err}
		}

		return d.cfg.CliPath, nil
	}

	name := d.binaryName()
	searched := make([]string, 0, 4)

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	searched = append(searched, "$PATH")

	for _, path := range commonPaths(name) {
		searched = append(searched, path)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	d.log.Warn("Agent CLI not found", "searched_paths", searched)

	return "", &errors.CLINotFoundError{SearchedPaths: searched}
}

func commonPaths(name string) []string {
	paths := []string{
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/usr/bin", name),
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".local", "bin", name),
			filepath.Join(home, ".npm-global", "bin", name),
		)
	}

	return paths
}

func (d *discoverer) checkVersion(ctx context.Context, cliPath string) error {
	if d.cfg.SkipVersionCheck || os.Getenv(skipVersionCheckEnv) != "" {
		d.log.Debug("Skipping CLI version check")

		return nil
	}

	version, err := Version(ctx, cliPath)
	if err != nil {
		// An unreadable version is not fatal; the handshake will tell.
		d.log.Debug("CLI version check failed", "error", err)

		return nil
	}

	if compareVersions(version, MinimumVersion) >= 0 {
		d.log.Debug("CLI version check passed", "version", version, "minimum", MinimumVersion)

		return nil
	}

	if d.cfg.StrictVersion {
		return &errors.InvalidVersionError{Version: version, Minimum: MinimumVersion}
	}

	d.log.Warn("Agent CLI version is below the supported minimum",
		"version", version,
		"minimum_required", MinimumVersion,
	)

	return nil
}

// Version runs "<cliPath> -v" and extracts the X.Y.Z version it prints.
func Version(ctx context.Context, cliPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, VersionCheckTimeout)
	defer cancel()

	//nolint:gosec // G204: running the discovered CLI is intended
	output, err := exec.CommandContext(ctx, cliPath, "-v").Output()
	if err != nil {
		return "", fmt.Errorf("run %s -v: %w", cliPath, err)
	}

	return ParseVersion(string(output))
}

// ParseVersion extracts a leading X.Y.Z from CLI version output.
func ParseVersion(output string) (string, error) {
	out := strings.TrimSpace(output)

	match := versionPattern.FindStringSubmatch(out)
	if match == nil {
		return "", fmt.Errorf("unrecognized version output %q", out)
	}

	return match[1], nil
}

// compareVersions compares two X.Y.Z versions.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func compareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	for i := range 3 {
		var aNum, bNum int

		if i < len(aParts) {
			aNum, _ = strconv.Atoi(aParts[i])
		}

		if i < len(bParts) {
			bNum, _ = strconv.Atoi(bParts[i])
		}

		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		}
	}

	return 0
}
