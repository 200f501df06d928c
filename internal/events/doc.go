// Package events broadcasts inventory change notifications over MQTT.
//
// The publisher implements inventory.Notifier. After each committed
// mutation the store hands it a ChangeEvent, which is serialised to
// JSON and published to assetforge/inventory/items/{id}. GUI instances
// subscribe with a wildcard and refresh their views on any message;
// they never trust event payloads for state, only as a refresh hint.
//
// Publishing is best effort. The mutation has already committed by the
// time the event is built, so delivery failures are logged and dropped
// rather than surfaced to the caller. The publisher maintains its own
// connection lifecycle with auto-reconnect and a Last Will message so
// subscribers can tell a crashed publisher from a stopped one.
//
// The whole package is optional: events are disabled by default in
// config, and the store runs without a notifier attached.
package events
