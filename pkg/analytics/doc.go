// Package analytics reports activity events to an external tracking
// service without ever blocking or failing the operation that produced
// them. Deliveries run in the background, failures are logged, and a
// tracker without a configured URL silently drops everything.
package analytics
