package planner

import (
	"strings"
	"testing"

	"github.com/doeshing/opsagent/internal/domain"
)

func TestFilterActions(t *testing.T) {
	tests := []struct {
		name        string
		commands    []string
		target      string
		wantKept    []string
		wantDropped int
	}{
		{
			name:     "keeps local commands",
			commands: []string{"df -h", "uptime"},
			target:   "web1",
			wantKept: []string{"df -h", "uptime"},
		},
		{
			name:        "drops leading ssh",
			commands:    []string{"SSH web2 uptime", "free -m"},
			target:      "web1",
			wantKept:    []string{"free -m"},
			wantDropped: 1,
		},
		{
			name:        "drops embedded ssh and user@host",
			commands:    []string{"sudo ssh box", "scp file root@10.0.0.1:/tmp", "ls"},
			target:      "web1",
			wantKept:    []string{"ls"},
			wantDropped: 2,
		},
		{
			name:        "drops target name case-insensitively",
			commands:    []string{"ping -c1 WEB1.internal", "hostname"},
			target:      "web1",
			wantKept:    []string{"hostname"},
			wantDropped: 1,
		},
		{
			name:     "empty target name matches nothing extra",
			commands: []string{"hostname"},
			target:   "",
			wantKept: []string{"hostname"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var actions []domain.Action
			for _, cmd := range tt.commands {
				actions = append(actions, domain.Action{Command: cmd})
			}
			kept, dropped := FilterActions(actions, tt.target)
			if dropped != tt.wantDropped {
				t.Fatalf("dropped = %d, want %d", dropped, tt.wantDropped)
			}
			if len(kept) != len(tt.wantKept) {
				t.Fatalf("kept = %+v, want %v", kept, tt.wantKept)
			}
			for i, action := range kept {
				if action.Command != tt.wantKept[i] {
					t.Fatalf("kept[%d] = %q, want %q", i, action.Command, tt.wantKept[i])
				}
			}
		})
	}
}

func TestFilterActionsInvariant(t *testing.T) {
	target := "Prod-DB"
	commands := []string{
		"ssh prod-db", "cat /etc/hosts", "echo a@b", "journalctl -u sshd",
		"curl http://prod-db:8080", "df -h", "rsync -e ssh a b", "whoami",
	}
	var actions []domain.Action
	for _, cmd := range commands {
		actions = append(actions, domain.Action{Command: cmd})
	}

	kept, dropped := FilterActions(actions, target)
	if len(kept)+dropped != len(actions) {
		t.Fatalf("kept %d + dropped %d != %d", len(kept), dropped, len(actions))
	}
	for _, action := range kept {
		lower := strings.ToLower(action.Command)
		if strings.Contains(lower, "ssh") || strings.Contains(lower, "@") || strings.Contains(lower, strings.ToLower(target)) {
			t.Fatalf("unsafe command survived: %q", action.Command)
		}
	}
}
