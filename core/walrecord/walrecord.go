// Package walrecord defines the records the device writes to its write-ahead
// log: settings changes and review decisions.
package walrecord

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vadiminshakov/tokencore/core/dto"
)

const (
	// system keys for record kinds
	KeySetting  = "__rec:setting"
	KeyDecision = "__rec:decision"

	// SettingExpert is the store key of the expert mode flag.
	SettingExpert = "settings/expert"
	// JournalPrefix prefixes decision keys in the store.
	JournalPrefix = "journal/"

	decisionLen = 16 + 1 + 4 + 2 + 8
)

// WalTx represents the payload stored in the WAL.
type WalTx struct {
	Key   string
	Value []byte
}

// JournalKey returns the store key of the decision written at WAL index idx.
// Keys sort in write order.
func JournalKey(idx uint64) string {
	return fmt.Sprintf("%s%020d", JournalPrefix, idx)
}

// Encode serializes a WalTx into bytes.
// Format: [KeyLen(4 bytes)] [KeyBytes] [ValueLen(4 bytes)] [ValueBytes]
func Encode(tx WalTx) []byte {
	keyLen := uint32(len(tx.Key))
	valLen := uint32(len(tx.Value))

	buf := make([]byte, 4+keyLen+4+valLen)

	binary.BigEndian.PutUint32(buf[0:4], keyLen)
	copy(buf[4:4+keyLen], tx.Key)

	binary.BigEndian.PutUint32(buf[4+keyLen:4+keyLen+4], valLen)
	copy(buf[4+keyLen+4:], tx.Value)

	return buf
}

// Decode deserializes bytes into a WalTx.
func Decode(data []byte) (WalTx, error) {
	if len(data) < 4 {
		return WalTx{}, fmt.Errorf("data too short for key length")
	}

	keyLen := binary.BigEndian.Uint32(data[0:4])
	if uint64(len(data)) < 4+uint64(keyLen)+4 {
		return WalTx{}, fmt.Errorf("data too short for key and value length")
	}

	key := string(data[4 : 4+keyLen])

	valLen := binary.BigEndian.Uint32(data[4+keyLen : 4+keyLen+4])
	if uint64(len(data)) < 4+uint64(keyLen)+4+uint64(valLen) {
		return WalTx{}, fmt.Errorf("data too short for value body")
	}

	value := make([]byte, valLen)
	copy(value, data[4+keyLen+4:4+keyLen+4+valLen])

	return WalTx{Key: key, Value: value}, nil
}

// EncodeBool stores a flag as a single byte.
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeBool is the inverse of EncodeBool.
func DecodeBool(data []byte) (bool, error) {
	if len(data) != 1 || data[0] > 1 {
		return false, fmt.Errorf("invalid flag encoding %x", data)
	}
	return data[0] == 1, nil
}

// EncodeDecision serializes a decision.
// Format: [Session(16)] [Outcome(1)] [Items(4)] [Status(2)] [UnixNano(8)]
func EncodeDecision(d dto.Decision) []byte {
	buf := make([]byte, decisionLen)
	copy(buf[0:16], d.Session[:])
	buf[16] = byte(d.Outcome)
	binary.BigEndian.PutUint32(buf[17:21], uint32(d.Items))
	binary.BigEndian.PutUint16(buf[21:23], d.Status)
	binary.BigEndian.PutUint64(buf[23:31], uint64(d.At.UnixNano()))
	return buf
}

// DecodeDecision deserializes a decision.
func DecodeDecision(data []byte) (dto.Decision, error) {
	if len(data) != decisionLen {
		return dto.Decision{}, fmt.Errorf("decision record is %d bytes, want %d", len(data), decisionLen)
	}

	var d dto.Decision
	session, err := uuid.FromBytes(data[0:16])
	if err != nil {
		return dto.Decision{}, err
	}
	d.Session = session
	d.Outcome = dto.Outcome(data[16])
	d.Items = int(binary.BigEndian.Uint32(data[17:21]))
	d.Status = binary.BigEndian.Uint16(data[21:23])
	d.At = time.Unix(0, int64(binary.BigEndian.Uint64(data[23:31])))
	return d, nil
}
