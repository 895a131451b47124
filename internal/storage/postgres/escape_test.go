package postgres

import "testing"

func TestEscapeLikePattern(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"certificate prefix", "cert:01J:", "cert:01J:"},
		{"percent", "idem:e:50%", `idem:e:50\%`},
		{"underscore", "idem:e:a_b", `idem:e:a\_b`},
		{"backslash", `idem:e:a\b`, `idem:e:a\\b`},
		{"injection attempt", `%'; DROP TABLE kv_store; --`, `\%'; DROP TABLE kv\_store; --`},
		{"mixed", `\%_x`, `\\\%\_x`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeLikePattern(tt.input); got != tt.want {
				t.Errorf("escapeLikePattern(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
