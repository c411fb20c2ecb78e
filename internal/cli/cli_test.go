package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	for _, name := range []string{"render", "trace", "search", "eras", "node", "stats", "serve", "cache", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestCompletionScript(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), appName) {
		t.Error("bash completion does not mention the binary")
	}
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LINEAGE_TOKEN", "from-env")
	c := New(io.Discard, LogInfo)
	c.backendURL = "http://localhost:1/api"
	if err := c.loadConfig(); err != nil {
		t.Fatal(err)
	}
	if c.Config.Backend.URL != "http://localhost:1/api" {
		t.Errorf("URL = %q", c.Config.Backend.URL)
	}
	if c.Config.Backend.Token != "from-env" {
		t.Errorf("Token = %q", c.Config.Backend.Token)
	}

	c.token = "from-flag"
	if err := c.loadConfig(); err != nil {
		t.Fatal(err)
	}
	if c.Config.Backend.Token != "from-flag" {
		t.Errorf("flag token should win, got %q", c.Config.Backend.Token)
	}
}

func TestViewerOptionsFromConfig(t *testing.T) {
	c := New(io.Discard, LogInfo)
	c.Config.Frame = FrameConfig{Width: 640, Height: 360}
	c.Config.Lineage.AnchorID = "anchor"

	opts := c.viewerOptions(nil, nil)
	if opts.Width != 640 || opts.Height != 360 {
		t.Errorf("size = %vx%v, want 640x360", opts.Width, opts.Height)
	}
	if opts.Config.AnchorID != "anchor" {
		t.Errorf("anchor = %q", opts.Config.AnchorID)
	}
	if opts.Logger != c.Logger {
		t.Error("viewers should log through the CLI logger")
	}
}
