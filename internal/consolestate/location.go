package consolestate

import "regexp"

// cargoRegistryPath matches file paths vendored from crates.io or a git
// checkout under a .cargo home; these are rewritten to a short, portable
// prefix so the rendered table doesn't show a different absolute path per
// machine.
var cargoRegistryPath = regexp.MustCompile(`.*/\.cargo(/registry/src/[^/]*/|/git/checkouts/)`)

// Location is where a task or resource was instrumented.
type Location struct {
	File       string
	ModulePath *string
	Line       uint32
	Column     uint32
}

func truncateRegistryPath(s string) string {
	return cargoRegistryPath.ReplaceAllString(s, "{cargo}/")
}
