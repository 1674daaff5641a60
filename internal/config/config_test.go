package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Config string

	Port      string   `toml:"server.port" env:"PORT"`
	Device    string   `toml:"camera.device" env:"DEVICE"`
	Width     uint32   `toml:"camera.width" env:"WIDTH"`
	FPS       int      `toml:"camera.fps" env:"FPS"`
	FixJPEG   bool     `toml:"camera.fix_jpeg" env:"FIX_JPEG"`
	TimeoutMs int      `toml:"camera.timeout_ms" env:"TIMEOUT_MS"`
	Origins   []string `toml:"server.origins" env:"ORIGINS"`
	Untagged  string
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webcam.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleTOML = `
[server]
port = ":9000"
origins = ["http://a", "http://b"]

[camera]
device = "2"
width = 1920
fps = 15
fix_jpeg = true
`

func TestLoadFromFile(t *testing.T) {
	opts := testOptions{Config: writeFile(t, sampleTOML), Port: ":8090", TimeoutMs: 100}
	require.NoError(t, Load(&opts, nil))

	assert.Equal(t, ":9000", opts.Port)
	assert.Equal(t, "2", opts.Device)
	assert.EqualValues(t, 1920, opts.Width)
	assert.Equal(t, 15, opts.FPS)
	assert.True(t, opts.FixJPEG)
	assert.Equal(t, 100, opts.TimeoutMs, "absent key keeps default")
	assert.Equal(t, []string{"http://a", "http://b"}, opts.Origins)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	opts := testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Port: ":8090"}
	require.NoError(t, Load(&opts, nil))
	assert.Equal(t, ":8090", opts.Port)
}

func TestLoadInvalidFile(t *testing.T) {
	opts := testOptions{Config: writeFile(t, "[camera\nwidth = ")}
	assert.Error(t, Load(&opts, nil))
}

func TestLoadTypeMismatch(t *testing.T) {
	opts := testOptions{Config: writeFile(t, "[camera]\nwidth = \"wide\"\n")}
	err := Load(&opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera.width")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("WEBCAM_DEVICE", "/dev/video4")
	t.Setenv("WEBCAM_FPS", "60")
	t.Setenv("WEBCAM_FIX_JPEG", "false")
	t.Setenv("WEBCAM_ORIGINS", "x, y")

	opts := testOptions{Config: writeFile(t, sampleTOML)}
	require.NoError(t, Load(&opts, nil))

	assert.Equal(t, "/dev/video4", opts.Device)
	assert.Equal(t, 60, opts.FPS)
	assert.False(t, opts.FixJPEG)
	assert.Equal(t, []string{"x", "y"}, opts.Origins)
	assert.Equal(t, ":9000", opts.Port)
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("WEBCAM_WIDTH", "-1")
	opts := testOptions{}
	err := Load(&opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEBCAM_WIDTH")
}

func TestLoadChangedFlagsWin(t *testing.T) {
	t.Setenv("WEBCAM_FPS", "60")

	var opts testOptions
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	cmd.Flags().StringVar(&opts.Device, "device", "0", "")
	cmd.Flags().IntVar(&opts.FPS, "fps", 30, "")
	cmd.Flags().BoolVar(&opts.FixJPEG, "fix-jpeg", false, "")
	require.NoError(t, cmd.ParseFlags([]string{"--device", "7", "--fix-jpeg=false"}))

	opts.Config = writeFile(t, sampleTOML)
	require.NoError(t, Load(&opts, cmd))

	assert.Equal(t, "7", opts.Device, "flag beats file")
	assert.False(t, opts.FixJPEG, "explicit false flag beats file")
	assert.Equal(t, 60, opts.FPS, "unset flag yields to env")
}

func TestLoadRejectsNonPointer(t *testing.T) {
	assert.Error(t, Load(testOptions{}, nil))
}

func TestFlagName(t *testing.T) {
	type named struct {
		FixJPEG      string
		TimeoutMs    string
		FPS          string
		LoggingLevel string
		HTTPPort     string
		Custom       string `name:"dev"`
	}
	typ := reflect.TypeOf(named{})
	want := []string{"fix-jpeg", "timeout-ms", "fps", "logging-level", "http-port", "dev"}
	for i, w := range want {
		assert.Equal(t, w, FlagName(typ.Field(i)))
	}
}

func TestLoadLogging(t *testing.T) {
	path := writeFile(t, `
[logging]
level = "debug"
format = "json"
capture = "warn"
api = "error"
`)
	cfg := LoadLogging(path)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, map[string]string{"capture": "warn", "api": "error"}, cfg.Modules)

	def := LoadLogging("")
	assert.Equal(t, "info", def.Level)
	assert.Equal(t, "text", def.Format)
	assert.Empty(t, def.Modules)

	assert.Equal(t, "info", LoadLogging(writeFile(t, "not toml [")).Level)
}
