// Package influxdb writes timeline metrics to InfluxDB v2.
//
// Every committed transition becomes a run_transition point tagged with
// the event, action and run, carrying the schedule shift and, when a run
// finished, its real duration against its estimate. Overlay updates are
// recorded as overlay_sync points. Writes are batched per
// influxdb.batch_size and influxdb.flush_interval.
package influxdb
