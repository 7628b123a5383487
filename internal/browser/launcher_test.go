package browser

import (
	"context"
	"net"
	"strings"
	"testing"
)

func TestArgsOpenStartURLs(t *testing.T) {
	l := NewLauncher(Config{
		CDPAddress: "127.0.0.1",
		CDPPort:    9220,
		ProfileDir: "/tmp/profile",
		StartURLs:  []string{"https://chatgpt.com/", "https://claude.ai/new"},
	})
	args := l.args()
	joined := strings.Join(args, " ")
	for _, want := range []string{"--remote-debugging-port=9220", "--user-data-dir=/tmp/profile", "--window-size=1600,1000"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args() = %q; missing %q", joined, want)
		}
	}
	if got := args[len(args)-2:]; got[0] != "https://chatgpt.com/" || got[1] != "https://claude.ai/new" {
		t.Fatalf("trailing args = %v; want the start URLs", got)
	}
}

func TestLaunchSkipsWhenPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	addr := ln.Addr().(*net.TCPAddr)
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: addr.Port, BinaryPath: "/nonexistent/chromium"})
	if err := l.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() = %v; want skip without error", err)
	}
	if l.Running() {
		t.Fatal("Running() = true; want false when an existing browser answered")
	}
	l.Stop()
}
