package runtime

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"tree-sitter-cerium/internal/shared/observability"
)

// ParserPool recycles parsers for a single host language.
//
//	sp, err := pool.Get()
//	defer pool.Put(sp)
//
// Safe for use by multiple goroutines.
type ParserPool struct {
	name string
	lang *sitter.Language
	pool sync.Pool

	leases   map[*sitter.Parser]struct{}
	leasesMu sync.Mutex
}

// NewParserPool creates a pool for a host language. The language must remain
// valid for the lifetime of the pool.
func NewParserPool(name string, lang *sitter.Language) *ParserPool {
	p := &ParserPool{
		name:   name,
		lang:   lang,
		leases: make(map[*sitter.Parser]struct{}),
	}
	p.pool = sync.Pool{
		New: func() any {
			return sitter.NewParser()
		},
	}
	return p
}

// Get leases a parser configured for the pool's language. It fails only when
// the host library rejects the language's ABI version.
func (p *ParserPool) Get() (*sitter.Parser, error) {
	sp := p.pool.Get().(*sitter.Parser)
	// The language is set on every lease in case the parser was Reset externally.
	if err := sp.SetLanguage(p.lang); err != nil {
		sp.Close()
		return nil, err
	}

	p.leasesMu.Lock()
	p.leases[sp] = struct{}{}
	active := len(p.leases)
	p.leasesMu.Unlock()
	observability.ParserPoolActive.WithLabelValues(p.name).Set(float64(active))

	return sp, nil
}

// Put resets a parser and returns it to the pool. Callers must not use sp
// afterwards.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}

	p.leasesMu.Lock()
	delete(p.leases, sp)
	active := len(p.leases)
	p.leasesMu.Unlock()
	observability.ParserPoolActive.WithLabelValues(p.name).Set(float64(active))

	sp.Reset()
	p.pool.Put(sp)
}

// Stats returns the number of leased parsers.
func (p *ParserPool) Stats() int {
	p.leasesMu.Lock()
	defer p.leasesMu.Unlock()
	return len(p.leases)
}
