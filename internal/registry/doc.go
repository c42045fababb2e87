// Package registry is the host registry: the named entities (devices and
// data points), device statuses and proxy action implementations that the
// synthesizer reflects into generated units.
//
// The registry is described in CUE:
//
//	items: ["Kitchen_Light", "Hall_Light"]
//
//	things: "hue:bridge:1": status: "ONLINE"
//
//	actions: "org.example.lighting.LightActions": {
//		thing: "hue:bridge:1"
//		scope: "lighting"
//		methods: [{name: "turnOn", params: ["boolean"], returns: "void"}]
//	}
//
// Methods are annotated unless they say `annotated: false`; an action
// without `scope` has no scope. Replacing the registry's state yields the
// host events a live host would have published for the same change.
package registry
