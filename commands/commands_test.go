package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"newhome-tracker/scraper/catalog"
)

func TestWriteExtractors(t *testing.T) {
	reg, err := catalog.Build(catalog.Deps{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeExtractors(&buf, reg.Filter([]string{"mihomes/painted-tree"})))

	var out struct {
		Extractors []extractorEntry `yaml:"extractors"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Extractors, 2)
	assert.Equal(t, extractorEntry{Key: "mihomes/painted-tree/plan", Builder: "mihomes", Community: "Painted Tree", Kind: "plan"}, out.Extractors[0])
	assert.Equal(t, "now", out.Extractors[1].Kind)
}

func TestSplitOrigins(t *testing.T) {
	assert.Nil(t, splitOrigins(""))
	assert.Equal(t, []string{"http://localhost:5173", "https://homes.example"},
		splitOrigins(" http://localhost:5173 ,https://homes.example,"))
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "harvest", "stats", "export", "extractors"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}
