package cdp

import (
	"encoding/binary"
	"strings"
)

var (
	recordPrefix  = []byte("cdp/record/")
	ownerPrefix   = []byte("cdp/owner/")
	nextIDKey     = []byte("cdp/meta/nextid")
	feeAccrualKey = []byte("cdp/meta/fees")
)

// recordKey encodes the id big-endian so LevelDB's ascending key order yields
// positions in allocation order during scans.
func recordKey(id uint64) []byte {
	buf := make([]byte, len(recordPrefix)+8)
	copy(buf, recordPrefix)
	binary.BigEndian.PutUint64(buf[len(recordPrefix):], id)
	return buf
}

func ownerKey(owner string) []byte {
	trimmed := strings.TrimSpace(owner)
	buf := make([]byte, len(ownerPrefix)+len(trimmed))
	copy(buf, ownerPrefix)
	copy(buf[len(ownerPrefix):], trimmed)
	return buf
}
