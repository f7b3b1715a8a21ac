package policy

import (
	"regexp"
	"strings"

	"github.com/ctavolazzi/novasystem/internal/run"
)

// Baseline destructive patterns. These are a minimum, not an exhaustive
// list; the configuration file can add rules but never remove these.
var (
	// rm with both recursive and force flags aimed at the filesystem root,
	// a home directory, or everything in the working directory.
	destructiveDelete = regexp.MustCompile(`\brm\s+(-[a-z]*r[a-z]*f[a-z]*|-[a-z]*f[a-z]*r[a-z]*)\s+("?/"?|/\*|~|\$home\b|\*)(\s|$)`)

	// --no-preserve-root is never legitimate in install documentation.
	noPreserveRoot = regexp.MustCompile(`--no-preserve-root`)

	// Classic fork bomb and close variants.
	forkBomb = regexp.MustCompile(`:\(\)\s*\{.*\};\s*:|\.0\|\.0&`)

	// Remote content piped straight into a shell.
	curlPipeShell = regexp.MustCompile(`\b(curl|wget)\b[^|;&]*\|\s*(sudo\s+)?(bash|sh|zsh)\b`)

	// Raw writes to block devices and filesystem re-creation.
	deviceWrite = regexp.MustCompile(`\bdd\b[^;|&]*\bof=/dev/|>\s*/dev/(sd|nvme|hd)|\bmkfs(\.[a-z0-9]+)?\b`)

	// Host shutdown or reboot.
	hostPower = regexp.MustCompile(`\b(shutdown|reboot|poweroff|halt)\b|\binit\s+0\b`)

	// URL hosts, for the network egress allow-list.
	urlHost = regexp.MustCompile(`https?://([^/\s'"]+)`)
)

// Well-known secret locations. A command that references one is trying
// to read credentials, which install documentation never needs.
var secretPaths = []string{
	"/etc/shadow",
	"/etc/sudoers",
	"~/.ssh",
	".ssh/id_",
	"~/.aws/credentials",
	".aws/credentials",
	"~/.gnupg",
	"~/.netrc",
	"~/.docker/config.json",
	"/var/run/secrets",
}

// Package registry hosts allowed for network egress without an override.
var registryAllowList = []string{
	"pypi.org",
	"files.pythonhosted.org",
	"registry.npmjs.org",
	"registry.yarnpkg.com",
	"crates.io",
	"static.crates.io",
	"index.crates.io",
	"proxy.golang.org",
	"sum.golang.org",
	"github.com",
	"codeload.github.com",
	"objects.githubusercontent.com",
}

// builtinRules returns the baseline rule chain, evaluated before any
// configured rules.
func builtinRules() []Rule {
	return []Rule{
		{Name: "destructive-delete", Check: checkDestructiveDelete},
		{Name: "fork-bomb", Check: checkForkBomb},
		{Name: "curl-pipe-shell", Check: checkCurlPipeShell},
		{Name: "secret-path", Check: checkSecretPath},
		{Name: "device-write", Check: checkDeviceWrite},
		{Name: "host-power", Check: checkHostPower},
		{Name: "network-egress", Check: checkNetworkEgress},
	}
}

func checkDestructiveDelete(cmd run.ParsedCommand) Decision {
	text := normalize(cmd.Text)
	if destructiveDelete.MatchString(text) || noPreserveRoot.MatchString(text) {
		return reject("destructive recursive delete: %q", cmd.Text)
	}
	return Pass
}

func checkForkBomb(cmd run.ParsedCommand) Decision {
	if forkBomb.MatchString(cmd.Text) {
		return reject("fork bomb pattern: %q", cmd.Text)
	}
	return Pass
}

func checkCurlPipeShell(cmd run.ParsedCommand) Decision {
	if curlPipeShell.MatchString(normalize(cmd.Text)) {
		return reject("remote content piped to a shell: %q", cmd.Text)
	}
	return Pass
}

func checkSecretPath(cmd run.ParsedCommand) Decision {
	text := normalize(cmd.Text)
	for _, p := range secretPaths {
		if strings.Contains(text, strings.ToLower(p)) {
			return reject("references secret path %s", p)
		}
	}
	return Pass
}

func checkDeviceWrite(cmd run.ParsedCommand) Decision {
	if deviceWrite.MatchString(normalize(cmd.Text)) {
		return reject("raw device write: %q", cmd.Text)
	}
	return Pass
}

func checkHostPower(cmd run.ParsedCommand) Decision {
	if hostPower.MatchString(normalize(cmd.Text)) {
		return reject("host power control: %q", cmd.Text)
	}
	return Pass
}

// checkNetworkEgress holds commands that reach hosts outside the known
// package registries. Commands without an explicit URL pass: their
// egress, if any, goes to the registry their tool is configured for.
func checkNetworkEgress(cmd run.ParsedCommand) Decision {
	for _, match := range urlHost.FindAllStringSubmatch(cmd.Text, -1) {
		host := strings.ToLower(match[1])
		// Strip credentials and port.
		if at := strings.LastIndex(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		if colon := strings.Index(host, ":"); colon >= 0 {
			host = host[:colon]
		}
		if !allowedHost(host) {
			return hold("egress to %s is not a known package registry", host)
		}
	}
	return Pass
}

// allowedHost reports whether a host is on the registry allow-list,
// either exactly or as a subdomain of an allowed entry.
func allowedHost(host string) bool {
	for _, allowed := range registryAllowList {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
