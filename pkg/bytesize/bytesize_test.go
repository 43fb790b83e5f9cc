package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1024", 1024},
		{"1", 1},
		{"2MiB", 2 * MB},
		{"2 MB", 2 * MB},
		{"512kb", 512 * KB},
		{"1.5K", 1536},
		{"1Gi", GB},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "-1", "10XB"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseZero(t *testing.T) {
	got, err := Parse("0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	for _, in := range []string{"0.5", "0.1B", "0.4"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q truncates to zero bytes", in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0 B", Format(0))
	assert.Equal(t, "2.0 MiB", Format(2*MB))
	assert.Equal(t, "-3 B", Format(-3))
}

func TestSizeYAML(t *testing.T) {
	var cfg struct {
		A Size `yaml:"a"`
		B Size `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 2MiB\nb: 4096\n"), &cfg))
	assert.Equal(t, Size(2*MB), cfg.A)
	assert.Equal(t, int64(4096), cfg.B.Bytes())

	err := yaml.Unmarshal([]byte("a: lots\n"), &cfg)
	assert.Error(t, err)
}

func TestSizeFlagValue(t *testing.T) {
	var s Size
	require.NoError(t, s.Set("64KB"))
	assert.Equal(t, Size(64*KB), s)
	assert.Equal(t, "size", s.Type())
	assert.Error(t, s.Set("x"))
}
