// Package hass defines the Home Assistant facing side of the bridge: the MQTT
// topic namespace of a media player device, the retained discovery descriptor,
// and the wire rendering of a media state snapshot.
//
// Everything here is pure. Nothing in this package talks to a broker.
//
// # Topic Layout
//
//	{prefix}/media_player/{device}/available   ON / OFF (retained, Last-Will)
//	{prefix}/media_player/{device}/state       playing / paused / stopped / idle
//	{prefix}/media_player/{device}/title       ...
//	{prefix}/media_player/{device}/seek        <- command
//	homeassistant/media_player/{device}/{app}/config   discovery (retained)
//
// Device identifiers are validated once, at configuration time, with
// ValidateDeviceID.
package hass
