package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ghosttube/internal/hass"
)

// Measurement names.
const (
	MeasurementMediaState = "media_state"
	MeasurementConnection = "broker_connection"
)

// WriteMediaState records one published media state.
//
// Tags: device_id, state. Fields: active, plus position, duration,
// video_id and title when known.
func (c *Client) WriteMediaState(deviceID string, state hass.MediaState) {
	c.writePoint(mediaStatePoint(deviceID, state, time.Now()))
}

// WriteConnectionStatus records a broker connection transition.
func (c *Client) WriteConnectionStatus(deviceID, status, lastError string) {
	c.writePoint(connectionPoint(deviceID, status, lastError, time.Now()))
}

// writePoint queues p on the non-blocking write API.
func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func mediaStatePoint(deviceID string, state hass.MediaState, ts time.Time) *write.Point {
	fields := map[string]interface{}{
		"active": !state.IsIdle(),
	}
	if state.Position != nil {
		fields["position"] = *state.Position
	}
	if state.Duration != nil {
		fields["duration"] = *state.Duration
	}
	if state.VideoID != "" {
		fields["video_id"] = state.VideoID
	}
	if state.Title != "" {
		fields["title"] = state.Title
	}

	return write.NewPoint(
		MeasurementMediaState,
		map[string]string{
			"device_id": deviceID,
			"state":     string(state.State),
		},
		fields,
		ts,
	)
}

func connectionPoint(deviceID, status, lastError string, ts time.Time) *write.Point {
	fields := map[string]interface{}{
		"connected": status == "connected",
	}
	if lastError != "" {
		fields["error"] = lastError
	}

	return write.NewPoint(
		MeasurementConnection,
		map[string]string{
			"device_id": deviceID,
			"status":    status,
		},
		fields,
		ts,
	)
}
