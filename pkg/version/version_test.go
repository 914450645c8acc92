package version

import "testing"

func TestVersionFallbacks(t *testing.T) {
	saved := [3]string{tag, commit, date}
	t.Cleanup(func() { tag, commit, date = saved[0], saved[1], saved[2] })

	tcases := map[string]struct {
		tag, commit, date string
		wantShort         string
		wantFull          string
	}{
		"dev":      {"", "unknown", "unknown", "dev", "dev"},
		"untagged": {"", "abc1234", "2026-01-01", "abc1234", "abc1234 built 2026-01-01"},
		"tagged":   {"v0.3.0", "abc1234", "2026-01-01", "v0.3.0", "v0.3.0 (abc1234) built 2026-01-01"},
	}

	for name, tc := range tcases {
		t.Run(name, func(t *testing.T) {
			tag, commit, date = tc.tag, tc.commit, tc.date
			if got := String(); got != tc.wantShort {
				t.Errorf("String() = %q, want %q", got, tc.wantShort)
			}
			if got := Full(); got != tc.wantFull {
				t.Errorf("Full() = %q, want %q", got, tc.wantFull)
			}
		})
	}
}
