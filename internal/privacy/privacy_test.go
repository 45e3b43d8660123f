package privacy

import (
	"strings"
	"testing"
)

func TestMaskChat(t *testing.T) {
	cases := []struct {
		id   int64
		want string
	}{
		{987651265, "****1265"},
		{42, "****42"},
		{1234, "****1234"},
		{-987651265, "****1265"},
	}
	for _, c := range cases {
		if got := MaskChat(c.id); got != c.want {
			t.Errorf("MaskChat(%d): got %q, want %q", c.id, got, c.want)
		}
	}
}

func TestShortHash_StableAndOpaque(t *testing.T) {
	a := ShortHash("target", "10.0.0.5:9090")
	b := ShortHash("target", "10.0.0.5:9090")
	if a != b {
		t.Errorf("ShortHash not stable: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "target:") {
		t.Errorf("ShortHash prefix: got %q", a)
	}
	if strings.Contains(a, "10.0.0.5") {
		t.Errorf("ShortHash leaks input: %q", a)
	}
	if len(a) != len("target:")+8 {
		t.Errorf("ShortHash length: got %d", len(a))
	}
}

func TestShortHash_PrefixSeparatesDomains(t *testing.T) {
	if ShortHash("target", "x") == ShortHash("bench", "x") {
		t.Error("hashes collide across prefixes")
	}
}

func TestScrub(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"dial tcp 10.0.0.5:9090: connection refused", "dial tcp [redacted]: connection refused"},
		{"get https://node.example.com:8443 failed", "get https://[redacted] failed"},
		{"nothing sensitive here", "nothing sensitive here"},
	}
	for _, c := range cases {
		if got := Scrub(c.in); got != c.want {
			t.Errorf("Scrub(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}
