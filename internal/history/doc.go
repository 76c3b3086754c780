// Package history keeps the local event log of lock transitions, alarm
// changes and faults in SQLite.
//
// It is an audit trail for operators. The controller never restores state
// from it at boot. Readings are not stored here; they go to InfluxDB.
// Old entries are removed by the Pruner according to the configured
// retention.
package history
