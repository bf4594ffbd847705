package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Job identifiers are ULIDs so a directory of reports lists in submission
// order. 48-bit millisecond timestamp, then 80 random bits with a counter
// folded in so IDs minted within the same millisecond stay distinct.

var (
	idMu       sync.Mutex
	lastMillis uint64
	idSeq      uint16
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewJobID returns a fresh 26-character job identifier.
func NewJobID() string {
	idMu.Lock()
	defer idMu.Unlock()

	ms := uint64(time.Now().UnixMilli())
	if ms == lastMillis {
		idSeq++
	} else {
		lastMillis = ms
		idSeq = 0
	}

	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], ms<<16) // timestamp in bytes 0-5
	rand.Read(b[6:])
	binary.BigEndian.PutUint16(b[6:8], idSeq)

	// Crockford Base32, 128 bits into 26 characters. The first character
	// covers only the top 3 bits, so bit offsets start at -2.
	var out [26]byte
	for i := range out {
		start := 5*i - 2
		var v byte
		for j := start; j < start+5; j++ {
			v <<= 1
			if j >= 0 && b[j/8]&(1<<(7-j%8)) != 0 {
				v |= 1
			}
		}
		out[i] = crockford[v]
	}
	return string(out[:])
}
