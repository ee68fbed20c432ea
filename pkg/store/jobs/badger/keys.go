package badger

// Key Namespace
// =============
//
//	Data Type     Prefix   Key Format              Value
//	=====================================================================
//	Job record    "job:"   job:<id>                Job (msgpack)
//	Queue index   "q:"     q:<queue>\x00<id>       empty
//
// The queue index lets List(queue) range scan one queue without decoding
// the records of every other queue. Queue names never contain NUL.

const (
	prefixJob   = "job:"
	prefixQueue = "q:"
)

func keyJob(id string) []byte {
	return []byte(prefixJob + id)
}

func keyQueuePrefix(queue string) []byte {
	return []byte(prefixQueue + queue + "\x00")
}

func keyQueueEntry(queue, id string) []byte {
	return append(keyQueuePrefix(queue), id...)
}

// idFromQueueEntry strips the queue prefix from an index key.
func idFromQueueEntry(key []byte, queue string) string {
	return string(key[len(keyQueuePrefix(queue)):])
}
