// Package influxdb records bridge telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with batched,
// non-blocking writes of two measurements:
//
//   - media_state: every media state the bridge publishes
//   - broker_connection: every broker connection transition
//
// Telemetry is optional. When disabled in configuration Connect returns
// ErrDisabled and the bridge runs without it.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	rec := influxdb.NewRecorder(client, cfg.Device.ID)
//	rec.RecordMediaState(state)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write errors are delivered asynchronously to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
