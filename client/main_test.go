package main

import (
	"os"
	"path/filepath"
	"testing"

	"go_uftp/constants"

	qt "github.com/frankban/quicktest"
)

func TestResolveSettingsDefaults(t *testing.T) {
	c := qt.New(t)

	settings, err := resolveSettings("", -1, "", "", false)
	c.Assert(err, qt.IsNil)
	c.Assert(settings.DSCP, qt.Equals, constants.DEFAULT_DSCP)
	c.Assert(settings.Root, qt.Equals, ".")
	c.Assert(settings.LogLevel, qt.Equals, "warn")
	c.Assert(settings.Transport.Compress, qt.IsFalse)
}

func TestResolveSettingsFileThenFlags(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(c.TempDir(), "client.toml")
	content := "dscp = 46\nroot = \"/data/in\"\nlog_level = \"info\"\n"
	c.Assert(os.WriteFile(path, []byte(content), 0o644), qt.IsNil)

	// Flags not given keep the file values.
	settings, err := resolveSettings(path, -1, "", "", false)
	c.Assert(err, qt.IsNil)
	c.Assert(settings.DSCP, qt.Equals, 46)
	c.Assert(settings.Root, qt.Equals, "/data/in")
	c.Assert(settings.LogLevel, qt.Equals, "info")

	settings, err = resolveSettings(path, 0, "here", "debug", true)
	c.Assert(err, qt.IsNil)
	c.Assert(settings.DSCP, qt.Equals, 0)
	c.Assert(settings.Root, qt.Equals, "here")
	c.Assert(settings.LogLevel, qt.Equals, "debug")
	c.Assert(settings.Transport.Compress, qt.IsTrue)
}

func TestResolveSettingsRejectsBadDSCP(t *testing.T) {
	c := qt.New(t)

	_, err := resolveSettings("", 64, "", "", false)
	c.Assert(err, qt.ErrorMatches, "dscp 64 outside 0-63")
}
