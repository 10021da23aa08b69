package version

import "testing"

func TestCurrentFillsDefaults(t *testing.T) {
	oldV, oldC, oldB := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldV, oldC, oldB })

	Version, Commit, BuildTime = "  ", "", ""
	info := Current()
	if info.Version != "dev" || info.Commit != "unknown" {
		t.Fatalf("unexpected defaults %#v", info)
	}
	if got := info.String(); got != "dev (unknown)" {
		t.Fatalf("unexpected string %q", got)
	}

	Version, Commit, BuildTime = "1.2.0", "abc123", "2024-06-01"
	if got := Current().String(); got != "1.2.0 (abc123, built 2024-06-01)" {
		t.Fatalf("unexpected string %q", got)
	}
}
