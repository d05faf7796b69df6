package descriptor

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

func hashArtifact(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fingerprint hashes a canonical encoding of every table. Field order is
// fixed, strings are length-prefixed and integers are big-endian.
func fingerprint(l *Language) string {
	e := &tableEncoder{h: sha256.New()}

	e.str(l.name)
	e.u32(l.abiVersion)

	e.u32(uint32(len(l.symbols)))
	for _, sym := range l.symbols {
		e.str(sym.Name)
		e.u32(uint32(sym.Kind))
		e.flag(sym.Named)
		e.flag(sym.Visible)
		e.flag(sym.Extra)
	}

	e.u32(uint32(len(l.fields)))
	for _, field := range l.fields {
		e.str(field)
	}

	e.u32(uint32(len(l.productions)))
	for _, p := range l.productions {
		e.u32(uint32(p.LHS))
		e.u32(uint32(len(p.Steps)))
		for _, step := range p.Steps {
			e.u32(uint32(step.Symbol))
			e.u32(uint32(step.Field))
			e.str(step.Alias)
			e.flag(step.AliasNamed)
		}
		e.i64(int64(p.Precedence))
		e.str(p.PrecedenceName)
		e.u32(uint32(p.Associativity))
		e.i64(int64(p.DynamicPrecedence))
	}

	e.u32(uint32(l.start))
	e.flag(l.hasWord)
	e.u32(uint32(l.word))

	e.u32(uint32(len(l.extras)))
	for _, extra := range l.extras {
		e.u32(uint32(extra))
	}

	names := make([]string, 0, len(l.precedence))
	for name := range l.precedence {
		names = append(names, name)
	}
	sort.Strings(names)
	e.u32(uint32(len(names)))
	for _, name := range names {
		e.str(name)
		e.i64(int64(l.precedence[name]))
	}

	return hex.EncodeToString(e.h.Sum(nil))
}

type tableEncoder struct {
	h   hash.Hash
	buf [8]byte
}

func (e *tableEncoder) u32(v uint32) {
	binary.BigEndian.PutUint32(e.buf[:4], v)
	e.h.Write(e.buf[:4])
}

func (e *tableEncoder) i64(v int64) {
	binary.BigEndian.PutUint64(e.buf[:], uint64(v))
	e.h.Write(e.buf[:])
}

func (e *tableEncoder) flag(v bool) {
	if v {
		e.h.Write([]byte{1})
		return
	}
	e.h.Write([]byte{0})
}

func (e *tableEncoder) str(s string) {
	e.u32(uint32(len(s)))
	e.h.Write([]byte(s))
}
