package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleforge/internal/ir"
	"github.com/roach88/ruleforge/internal/testutil"
)

const sample = `
items: ["Kitchen_Light", "Hall_Light"]

things: {
	"hue:bridge:1": status: "ONLINE"
	"zwave:device:node-5": status: "uninitialized"
	"mqtt:broker:main": {}
}

actions: {
	"org.example.lighting.LightActions": {
		thing: "hue:bridge:1"
		scope: "lighting"
		methods: [
			{name: "turnOn", params: ["boolean"], returns: "void"},
			{name: "internal", annotated: false},
		]
	}
	"org.example.zwave.NodeActions": {
		thing: "zwave:device:node-5"
		scope: "zwave"
		methods: [{name: "ping", returns: "java.lang.String[]"}]
	}
	"org.example.mqtt.NoScopeActions": {
		thing: "mqtt:broker:main"
	}
}
`

func TestLoadString(t *testing.T) {
	st, err := LoadString(sample, "host.cue")
	require.NoError(t, err)

	assert.Equal(t, []string{"Kitchen_Light", "Hall_Light"}, st.Items)
	assert.Equal(t, []Thing{
		{UID: "hue:bridge:1", Status: ir.StatusOnline},
		{UID: "zwave:device:node-5", Status: ir.StatusUninitialized},
		{UID: "mqtt:broker:main", Status: ir.StatusOnline},
	}, st.Things)

	require.Len(t, st.Actions, 3)
	light := st.Actions[0]
	assert.Equal(t, "org.example.lighting.LightActions", light.Class)
	assert.Equal(t, "hue:bridge:1", light.Owner)
	assert.True(t, light.HasScope)
	assert.Equal(t, "lighting", light.Scope)
	assert.Equal(t, []ir.ActionMethod{
		{Name: "turnOn", Annotated: true, Params: []ir.TypeRef{{Name: "boolean"}}, Returns: ir.TypeRef{Name: "void"}},
		{Name: "internal", Annotated: false, Returns: ir.TypeRef{Name: "void"}},
	}, light.Methods)

	assert.Equal(t, ir.TypeRef{Name: "java.lang.String", Array: true}, st.Actions[1].Methods[0].Returns)
	assert.False(t, st.Actions[2].HasScope)
}

func TestLoadString_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `items: [`, "host.cue"},
		{"bad status", `things: "a:b:c": status: "SLEEPING"`, `unknown status "SLEEPING"`},
		{"missing thing", `actions: "a.B": {scope: "x"}`, "thing is required"},
		{"item not a string", `items: [1]`, "host.cue"},
		{"method without name", `actions: "a.B": {thing: "x", methods: [{params: []}]}`, "method name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.src, "host.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "host.cue"), sample)
	st, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, st.Items, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
}

func TestRegistry_ProxiesOnlyForInitializedThings(t *testing.T) {
	st, err := LoadString(sample, "host.cue")
	require.NoError(t, err)
	r := New(st)

	var classes []string
	for _, p := range r.Proxies() {
		classes = append(classes, p.Class)
	}
	assert.Equal(t, []string{"org.example.lighting.LightActions", "org.example.mqtt.NoScopeActions"}, classes)

	assert.Equal(t, []ir.Entity{{Name: "Kitchen_Light"}, {Name: "Hall_Light"}}, r.Entities(ir.CategoryDataPoint))
	assert.Len(t, r.Entities(ir.CategoryDevice), 3)

	s, ok := r.Status("zwave:device:node-5")
	require.True(t, ok)
	assert.Equal(t, ir.StatusUninitialized, s)
}

func TestRegistry_Replace(t *testing.T) {
	r := New(&State{
		Items:  []string{"Kitchen_Light", "Old_Item"},
		Things: []Thing{{UID: "hue:bridge:1", Status: ir.StatusOnline}, {UID: "gone:thing:1", Status: ir.StatusOffline}},
	})

	ch := r.Replace(&State{
		Items: []string{"Kitchen_Light", "New_Item"},
		Things: []Thing{
			{UID: "hue:bridge:1", Status: ir.StatusUninitialized},
			{UID: "new:thing:1", Status: ir.StatusOnline},
			{UID: "new:thing:2", Status: ir.StatusUninitialized},
		},
		Actions: []ir.ProxyAction{testutil.LightActions()},
	})

	assert.Equal(t, []ir.Event{
		ir.EntityRemoved(ir.CategoryDataPoint, "Old_Item"),
		ir.StatusChanged("gone:thing:1", ir.StatusOffline, ir.StatusRemoved),
		ir.EntityRemoved(ir.CategoryDevice, "gone:thing:1"),
		ir.EntityAdded(ir.CategoryDataPoint, "New_Item"),
		ir.EntityAdded(ir.CategoryDevice, "new:thing:1"),
		ir.StatusChanged("new:thing:1", ir.StatusUninitialized, ir.StatusOnline),
		ir.EntityAdded(ir.CategoryDevice, "new:thing:2"),
		ir.StatusChanged("hue:bridge:1", ir.StatusOnline, ir.StatusUninitialized),
	}, ch.Events)
	assert.True(t, ch.ActionsChanged)

	ch = r.Replace(&State{
		Items:   []string{"Kitchen_Light", "New_Item"},
		Things:  r.Snapshot().Things,
		Actions: []ir.ProxyAction{testutil.LightActions()},
	})
	assert.Empty(t, ch.Events)
	assert.False(t, ch.ActionsChanged)
}
