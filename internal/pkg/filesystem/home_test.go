package filesystem

import (
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/ops")
	tests := []struct {
		in   string
		want string
	}{
		{in: "~/x/y.yaml", want: filepath.Join("/home/ops", "x", "y.yaml")},
		{in: "~", want: "/home/ops"},
		{in: "/etc/opsagent.yaml", want: "/etc/opsagent.yaml"},
		{in: "relative/path", want: "relative/path"},
	}
	for _, tt := range tests {
		if got := ExpandHome(tt.in); got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
