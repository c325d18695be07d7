package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowmanjd/busser/internal/parser/csv"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "", "")
	fs.String("delimiter", "", "")
	fs.String("encoding", "", "")
	fs.Int("pagesize", 0, "")
	fs.StringP("table", "t", "", "")
	return fs
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "busser.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoad_Precedence(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeYAML(t, "log_level: info\ndelimiter: \";\"\nencoding: latin1\npage_size: 10\n")
	t.Setenv("BUSSER_LOG_LEVEL", "error")
	t.Setenv("BUSSER_ENCODING", "windows-1252")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--encoding", "utf-16le", "-t", "ignored"}))

	cfg, used, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "error", cfg.LogLevel)    // env over file
	assert.Equal(t, ";", cfg.Delimiter)       // file over default
	assert.Equal(t, "utf-16le", cfg.Encoding) // flag over env
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeYAML(t, "delimiter: \"|\"\n")

	fs := testFlags()
	require.NoError(t, fs.Parse(nil))

	cfg, _, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "|", cfg.Delimiter)
}

func TestLoad_DefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "busser.yml"), []byte("log_format: json\n"), 0o644))

	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "busser.yml", used)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorContains(t, err, "error reading config file")

	_, _, err = Load(writeYAML(t, "metrics: prometheus\n"), nil)
	assert.ErrorContains(t, err, "invalid metrics backend")

	_, _, err = Load(writeYAML(t, "delimiter: ab\n"), nil)
	assert.ErrorContains(t, err, "delimiter")

	_, _, err = Load(writeYAML(t, "page_size: -2\n"), nil)
	assert.ErrorContains(t, err, "page_size")
}

func TestParseSeparator(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"", nil},
		{",", []byte(",")},
		{"tab", []byte("\t")},
		{"TAB", []byte("\t")},
		{`\t`, []byte("\t")},
		{"0x1f", []byte{0x1f}},
		{"0X1E", []byte{0x1e}},
		{"||", []byte("||")},
		{`\r\n`, []byte("\r\n")},
		{"unit", []byte{0x1f}},
	}
	for _, tt := range tests {
		got, err := ParseSeparator(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"0xzz", "0x100", `\q`} {
		_, err := ParseSeparator(bad)
		assert.Error(t, err, bad)
	}
}

func TestConfig_Scanner(t *testing.T) {
	cfg := Defaults()
	cfg.Delimiter = "tab"
	cfg.Terminator = "0x1e"
	cfg.Encoding = "latin1"

	sc, err := cfg.Scanner(false)
	require.NoError(t, err)
	assert.Equal(t, csv.Config{Delimiter: '\t', Quote: '"', Terminator: 0x1e, Encoding: "latin1"}, sc)

	sc, err = cfg.Scanner(true)
	require.NoError(t, err)
	assert.Equal(t, byte(csv.UnitSeparator), sc.Delimiter)
	assert.Equal(t, byte(csv.RecordSeparator), sc.Terminator)
	assert.Equal(t, "latin1", sc.Encoding)

	cfg.Terminator = "CRLF"
	sc, err = cfg.Scanner(false)
	require.NoError(t, err)
	assert.Zero(t, sc.Terminator)
}

func TestConfig_Separators(t *testing.T) {
	cfg := Defaults()
	field, row, err := cfg.Separators()
	require.NoError(t, err)
	assert.Nil(t, field)
	assert.Nil(t, row)

	cfg.FieldSeparator = "pipe"
	cfg.RowSeparator = `\n`
	field, row, err = cfg.Separators()
	require.NoError(t, err)
	assert.Equal(t, []byte("|"), field)
	assert.Equal(t, []byte("\n"), row)
}
