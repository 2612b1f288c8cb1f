package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/action"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paconfig"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/thermal"
)

func Test_stringParam_FallsBackToDefault(t *testing.T) {
	p := map[string]any{"name": "redis-main"}
	assert.Equal(t, "redis-main", stringParam(p, "name", "fallback"))
	assert.Equal(t, "fallback", stringParam(p, "missing", "fallback"))
}

func Test_stringSliceParam_ReadsJSONStyleArray(t *testing.T) {
	p := map[string]any{"brokers": []any{"a:9092", "b:9092"}}
	assert.Equal(t, []string{"a:9092", "b:9092"}, stringSliceParam(p, "brokers", nil))
	assert.Equal(t, []string{"default"}, stringSliceParam(p, "missing", []string{"default"}))
}

func Test_buildActionDrivers_KeysDriverByEveryActionNode(t *testing.T) {
	gcfg := paconfig.GraphConfig{
		Nodes: []paconfig.NodeConfig{
			{ID: "src", Type: "source"},
			{ID: "dispatch1", Type: "action"},
			{ID: "dispatch2", Type: "action"},
		},
	}
	acfg := paconfig.ActionConfig{Driver: "interpreter"}

	drivers, interpreters := buildActionDrivers(gcfg, acfg)
	require.Len(t, drivers, 2)
	assert.Contains(t, drivers, "dispatch1")
	assert.Contains(t, drivers, "dispatch2")
	assert.NotContains(t, drivers, "src")
	assert.Same(t, drivers["dispatch1"], drivers["dispatch2"])

	fn, ok := interpreters.Lookup("identity")
	require.True(t, ok)
	out, err := fn(map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1}, out)
}

func Test_buildActionDrivers_RedisDriver(t *testing.T) {
	gcfg := paconfig.GraphConfig{Nodes: []paconfig.NodeConfig{{ID: "dispatch1", Type: "action"}}}
	acfg := paconfig.ActionConfig{Driver: "redis", Parameters: map[string]any{"addr": "localhost:6379"}}

	drivers, _ := buildActionDrivers(gcfg, acfg)
	_, ok := drivers["dispatch1"].(*action.RedisDriver)
	assert.True(t, ok)
}

func Test_listenPort(t *testing.T) {
	port, err := listenPort(":8080")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	port, err = listenPort("127.0.0.1:9001")
	require.NoError(t, err)
	assert.Equal(t, 9001, port)

	_, err = listenPort("not-an-address")
	assert.Error(t, err)
}

func Test_buildThermalDriver_SupportsSimulationOnly(t *testing.T) {
	driver, err := buildThermalDriver(paconfig.ThermalConfig{DriverType: "simulation"})
	require.NoError(t, err)
	_, ok := driver.(*thermal.SimulationDriver)
	assert.True(t, ok)

	_, err = buildThermalDriver(paconfig.ThermalConfig{DriverType: "native"})
	assert.Error(t, err)

	_, err = buildThermalDriver(paconfig.ThermalConfig{DriverType: "usb_hid"})
	assert.Error(t, err)
}
