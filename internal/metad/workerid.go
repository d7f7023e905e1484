package metad

import "encoding/binary"

// maxWorkerID is the largest value a 13-bit Snowflake worker id field
// can hold (src/common/id/SnowFlake.h in original_source/ reserves 13
// bits of the 64-bit id for it), so at most 8192 hosts can hold a
// lease at once.
const maxWorkerID = 1<<13 - 1

// LeaseWorkerID returns host's previously-leased worker id if it has
// one, or assigns and persists the next free one. Assignment is
// host-scoped and idempotent: calling this again for the same host
// after a restart returns the same id rather than leaking a new one
// every time a process comes back up.
func (s *Service) LeaseWorkerID(host string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := decodeCatalog(s.engine)
	if err != nil {
		return 0, err
	}
	if id, ok := cat.WorkerLeases[host]; ok {
		return id, nil
	}

	used := make(map[uint32]bool, len(cat.WorkerLeases))
	for _, id := range cat.WorkerLeases {
		used[id] = true
	}
	var next uint32
	found := false
	for id := uint32(0); id <= maxWorkerID; id++ {
		if !used[id] {
			next = id
			found = true
			break
		}
	}
	if !found {
		return 0, errWorkerIDsExhausted
	}

	val := make([]byte, 4)
	binary.BigEndian.PutUint32(val, next)
	steps := []step{{Kind: kindPut, Key: workerKey(host), Value: val}}
	steps, err = s.bumpVersion(steps)
	if err != nil {
		return 0, err
	}
	if err := s.propose(steps); err != nil {
		return 0, err
	}
	return next, nil
}
