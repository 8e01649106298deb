package idgen

import (
	"regexp"
	"testing"
)

func TestGenerateWithPrefix(t *testing.T) {
	for _, prefix := range []string{NodePrefix, EdgePrefix, MapPrefix, ""} {
		id, err := GenerateWithPrefix(prefix)
		if err != nil {
			t.Fatalf("GenerateWithPrefix(%q) error: %v", prefix, err)
		}

		wantLen := len(prefix) + Length
		if len(id) != wantLen {
			t.Errorf("GenerateWithPrefix(%q) length = %d, want %d (id=%q)", prefix, len(id), wantLen, id)
		}

		pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `[a-zA-Z0-9]+$`)
		if !pattern.MatchString(id) {
			t.Errorf("GenerateWithPrefix(%q) = %q, does not match expected charset pattern", prefix, id)
		}
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := GenerateWithPrefix(NodePrefix)
		if err != nil {
			t.Fatalf("GenerateWithPrefix() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestMapID(t *testing.T) {
	id, err := MapID()
	if err != nil {
		t.Fatalf("MapID() error: %v", err)
	}
	if id[:len(MapPrefix)] != MapPrefix {
		t.Errorf("MapID() = %q, want prefix %q", id, MapPrefix)
	}
}
