package models

import "time"

// BusMessage is a raw message as consumed from the bus, carried into the
// dead-letter sink when redelivery attempts are exhausted.
type BusMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}
