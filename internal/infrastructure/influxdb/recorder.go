package influxdb

import "github.com/nerrad567/ghosttube/internal/hass"

// Recorder binds a Client to one device. It satisfies the session
// coordinator's StateRecorder.
type Recorder struct {
	client   *Client
	deviceID string
}

// NewRecorder returns a recorder tagging every point with deviceID.
func NewRecorder(client *Client, deviceID string) *Recorder {
	return &Recorder{client: client, deviceID: deviceID}
}

// RecordMediaState writes state.
func (r *Recorder) RecordMediaState(state hass.MediaState) {
	r.client.WriteMediaState(r.deviceID, state)
}

// RecordConnectionStatus writes a broker connection transition.
func (r *Recorder) RecordConnectionStatus(status, lastError string) {
	r.client.WriteConnectionStatus(r.deviceID, status, lastError)
}
