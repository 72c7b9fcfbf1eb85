// Package natsintake consumes notification batches from NATS.
//
// Each message is one JSON batch and therefore one processing unit.
// Messages are queued as they arrive and applied by a single Run loop, so
// units are applied one at a time in arrival order. Malformed messages are
// logged and dropped. When a message carries a reply subject the unit
// summary is published back.
package natsintake
