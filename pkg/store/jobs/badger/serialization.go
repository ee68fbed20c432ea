package badger

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/marmos91/dittolpd/pkg/store/jobs"
)

// Job records are msgpack encoded using the struct tags on jobs.Job.

func encodeJob(j *jobs.Job) ([]byte, error) {
	data, err := msgpack.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job %s: %w", j.ID, err)
	}
	return data, nil
}

func decodeJob(data []byte) (*jobs.Job, error) {
	var j jobs.Job
	if err := msgpack.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &j, nil
}
