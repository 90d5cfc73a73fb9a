package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/util/lines"
)

type (
	// Snapshot is an immutable checkpoint: the ordered confirmed prefix of
	// the DAG up to a cut point, the validator registry state at that point
	// and the hash link to the previous snapshot. Once written, it never
	// changes; covered transactions may be pruned from the live DAG without
	// losing auditability
	Snapshot struct {
		SeqNo     uint64
		PrevHash  [32]byte
		CreatedAt int64 // unix nanoseconds
		// Included confirmed transaction ids in topological order,
		// ancestors before descendants
		Included      []ledger.TransactionID
		RegistryState []byte
	}
)

// Hash commitment to the full snapshot content, links the checkpoint chain
func (s *Snapshot) Hash() [32]byte {
	return ledger.HashData(s.Bytes())
}

func (s *Snapshot) Bytes() []byte {
	var buf bytes.Buffer
	var num [8]byte
	binary.BigEndian.PutUint64(num[:], s.SeqNo)
	buf.Write(num[:])
	buf.Write(s.PrevHash[:])
	binary.BigEndian.PutUint64(num[:], uint64(s.CreatedAt))
	buf.Write(num[:])
	binary.BigEndian.PutUint32(num[:4], uint32(len(s.Included)))
	buf.Write(num[:4])
	for i := range s.Included {
		buf.Write(s.Included[i][:])
	}
	binary.BigEndian.PutUint32(num[:4], uint32(len(s.RegistryState)))
	buf.Write(num[:4])
	buf.Write(s.RegistryState)
	return buf.Bytes()
}

func SnapshotFromBytes(data []byte) (*Snapshot, error) {
	rdr := bytes.NewReader(data)
	ret := &Snapshot{}

	if err := binary.Read(rdr, binary.BigEndian, &ret.SeqNo); err != nil {
		return nil, fmt.Errorf("SnapshotFromBytes: %w", err)
	}
	if _, err := io.ReadFull(rdr, ret.PrevHash[:]); err != nil {
		return nil, fmt.Errorf("SnapshotFromBytes: %w", err)
	}
	if err := binary.Read(rdr, binary.BigEndian, &ret.CreatedAt); err != nil {
		return nil, fmt.Errorf("SnapshotFromBytes: %w", err)
	}
	var numIncluded uint32
	if err := binary.Read(rdr, binary.BigEndian, &numIncluded); err != nil {
		return nil, fmt.Errorf("SnapshotFromBytes: %w", err)
	}
	ret.Included = make([]ledger.TransactionID, numIncluded)
	for i := range ret.Included {
		if _, err := io.ReadFull(rdr, ret.Included[i][:]); err != nil {
			return nil, fmt.Errorf("SnapshotFromBytes: %w", err)
		}
	}
	var lenRegistry uint32
	if err := binary.Read(rdr, binary.BigEndian, &lenRegistry); err != nil {
		return nil, fmt.Errorf("SnapshotFromBytes: %w", err)
	}
	if int(lenRegistry) != rdr.Len() {
		return nil, fmt.Errorf("SnapshotFromBytes: wrong registry state length")
	}
	ret.RegistryState = make([]byte, lenRegistry)
	_, _ = io.ReadFull(rdr, ret.RegistryState)
	return ret, nil
}

func (s *Snapshot) String() string {
	h := s.Hash()
	return fmt.Sprintf("snapshot #%d, hash %x.., %d transaction(s)", s.SeqNo, h[:4], len(s.Included))
}

func (s *Snapshot) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	ret.Add("%s", s.String())
	ret.Add("    prev: %x..", s.PrevHash[:4])
	for i := range s.Included {
		ret.Add("    %s", s.Included[i].StringShort())
	}
	return ret
}
