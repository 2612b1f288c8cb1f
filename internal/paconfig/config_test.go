package paconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_RoundTripsThroughSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Acquisition.Device = "hw:1,0"
	cfg.Processing.Graph.Nodes = []NodeConfig{{ID: "src", Type: "source"}, {ID: "sink", Type: "sink"}}
	cfg.Processing.Graph.Edges = []EdgeConfig{{From: "src", To: "sink"}}

	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "hw:1,0", loaded.Acquisition.Device)
	assert.Len(t, loaded.Processing.Graph.Nodes, 2)
}

func TestSave_WritesRestrictedPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
}

func TestValidate_RejectsUnknownAcquisitionSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Acquisition.Source = "telepathy"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsFileReplayWithoutPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Acquisition.Source = "file_replay"
	cfg.Acquisition.FilePath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsDuplicateNodeIDs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.Graph.Nodes = []NodeConfig{{ID: "a", Type: "t"}, {ID: "a", Type: "t"}}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadThermalDriverType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thermal["r1"] = ThermalConfig{DriverType: "magic", SamplingFrequencyHz: 10}
	assert.Error(t, cfg.Validate())
}

func TestToGraphConfig_PreservesNodesAndEdges(t *testing.T) {
	g := GraphConfig{
		InputNode:  "src",
		OutputNode: "sink",
		Nodes:      []NodeConfig{{ID: "src", Type: "source"}},
		Edges:      []EdgeConfig{{From: "src", To: "sink"}},
	}
	gc := g.ToGraphConfig()
	assert.Equal(t, "src", gc.InputNode)
	assert.Len(t, gc.Nodes, 1)
	assert.Equal(t, "source", gc.Nodes[0].Type)
}
