package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "none", LevelNone.String())
	assert.Equal(t, "switching", LevelSwitching.String())
	assert.Equal(t, "preferred-data", LevelPreferredData.String())
	assert.Equal(t, "unknown", Level(99).String())
}

func TestLevel_Ordering(t *testing.T) {
	assert.True(t, LevelPreferredData.AtLeast(LevelSwitching))
	assert.True(t, LevelSwitching.AtLeast(LevelEmbedded))
	assert.True(t, LevelEmbedded.AtLeast(LevelDefaultSubscriptions))
	assert.False(t, LevelSubscriptions.AtLeast(LevelDefaultSubscriptions))
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		version string
		want    Level
	}{
		{"4.4", LevelNone},
		{"5.0", LevelNone},
		{"5.1", LevelSubscriptions},
		{"6.0.1", LevelSubscriptions},
		{"7", LevelDefaultSubscriptions},
		{"8.1", LevelDefaultSubscriptions},
		{"9", LevelEmbedded},
		{"10", LevelSwitching},
		{"11.0.1", LevelPreferredData},
		{"14", LevelPreferredData},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := ParseVersion(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	_, err := ParseVersion("pie")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse platform version")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("Switching")
	require.NoError(t, err)
	assert.Equal(t, LevelSwitching, l)

	l, err = ParseLevel("level2")
	require.NoError(t, err)
	assert.Equal(t, LevelDefaultSubscriptions, l)

	l, err = ParseLevel("11")
	require.NoError(t, err)
	assert.Equal(t, LevelPreferredData, l)
}
