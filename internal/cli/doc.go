// Package cli locates the agent CLI binary and builds its command line.
//
// # Discovery
//
// Discoverer searches in this order:
//  1. Config.CliPath, if set
//  2. PATH
//  3. Common install directories (/usr/local/bin, /usr/bin, ~/.local/bin, ~/.npm-global/bin)
//
// The version printed by "<cli> -v" is compared with MinimumVersion. An older
// CLI is logged as a warning, or rejected with InvalidVersionError when
// Config.StrictVersion is set. Config.SkipVersionCheck or the
// AGENTWIRE_SKIP_VERSION_CHECK environment variable skips the check.
//
// # Command building
//
//	args := cli.BuildArgs(options)
//	env := cli.BuildEnvironment(options)
package cli
