// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit, Date = "v1.2.3", "abc1234", "2025-10-19"
	if got, want := String(), "v1.2.3 (commit: abc1234, built: 2025-10-19)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
