package vm

import (
	"golang.org/x/crypto/blake2b"

	"sable/internal/hostabi"
)

// Host is the capability surface behind host calls. Implementations must
// be deterministic: the parallel scheduler replays conflicting
// transactions and expects identical results. A successful StateRead
// returns exactly capWords values; on any non-success status compiled
// code aborts without consuming the output, so none may be returned.
type Host interface {
	StateRead(ns, key []byte, capWords int) ([]Value, hostabi.Status)
	StateWrite(ns, key []byte, val []Value) hostabi.Status
	StateExists(ns, key []byte) (bool, hostabi.Status)
	StateDelete(ns, key []byte) hostabi.Status

	Sender() Value
	Unit() Value
	TxValue() uint64

	Emit(event []byte, args []Value) hostabi.Status
}

// LogRecord is one emitted structured log entry.
type LogRecord struct {
	Event string
	Args  []Value
}

// DeltaKind discriminates recorded state mutations.
type DeltaKind uint8

const (
	DeltaWrite DeltaKind = iota
	DeltaDelete
)

// StateDelta records one mutation in execution order.
type StateDelta struct {
	Kind      DeltaKind
	Namespace string
	Key       string
	Value     []Value
}

// MockHost is the in-memory host used by tests and `sable run`: a flat
// state map plus a journal of deltas and logs.
type MockHost struct {
	State map[string][]Value

	SenderAddr []byte
	UnitID     string
	Value      uint64

	Deltas []StateDelta
	Logs   []LogRecord
}

// NewMockHost returns an empty host for the unit.
func NewMockHost(unitID string) *MockHost {
	return &MockHost{
		State:      make(map[string][]Value),
		SenderAddr: []byte("0x0000000000000000000000000000000000000001"),
		UnitID:     unitID,
	}
}

func stateKey(ns, key []byte) string {
	return string(ns) + "\x00" + string(key)
}

// StateRead returns the stored words, zero-filled when absent.
func (h *MockHost) StateRead(ns, key []byte, capWords int) ([]Value, hostabi.Status) {
	if v, ok := h.State[stateKey(ns, key)]; ok {
		if len(v) > capWords {
			return nil, hostabi.StatusBufferTooSmall
		}
		out := make([]Value, capWords)
		copy(out, v)
		return out, hostabi.StatusOK
	}
	return make([]Value, capWords), hostabi.StatusOK
}

func (h *MockHost) StateWrite(ns, key []byte, val []Value) hostabi.Status {
	stored := make([]Value, len(val))
	copy(stored, val)
	h.State[stateKey(ns, key)] = stored
	h.Deltas = append(h.Deltas, StateDelta{
		Kind: DeltaWrite, Namespace: string(ns), Key: string(key), Value: stored,
	})
	return hostabi.StatusOK
}

func (h *MockHost) StateExists(ns, key []byte) (bool, hostabi.Status) {
	_, ok := h.State[stateKey(ns, key)]
	return ok, hostabi.StatusOK
}

// StateDelete is idempotent: deleting an absent key succeeds without a
// journal entry.
func (h *MockHost) StateDelete(ns, key []byte) hostabi.Status {
	k := stateKey(ns, key)
	if _, ok := h.State[k]; !ok {
		return hostabi.StatusOK
	}
	delete(h.State, k)
	h.Deltas = append(h.Deltas, StateDelta{
		Kind: DeltaDelete, Namespace: string(ns), Key: string(key),
	})
	return hostabi.StatusOK
}

func (h *MockHost) Sender() Value { return BytesValue(h.SenderAddr) }

func (h *MockHost) Unit() Value { return BytesValue([]byte(h.UnitID)) }

func (h *MockHost) TxValue() uint64 { return h.Value }

func (h *MockHost) Emit(event []byte, args []Value) hostabi.Status {
	h.Logs = append(h.Logs, LogRecord{Event: string(event), Args: args})
	return hostabi.StatusOK
}

// Digest computes the canonical 32-byte digest of a value.
func Digest(v Value) Value {
	sum := blake2b.Sum256(v.Encode())
	return BytesValue(sum[:])
}
