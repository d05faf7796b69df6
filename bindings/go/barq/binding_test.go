package tree_sitter_barq_test

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tree_sitter_barq "tree-sitter-cerium/bindings/go/barq"
	"tree-sitter-cerium/pkg/descriptor"
)

func TestCanLoadGrammar(t *testing.T) {
	language := tree_sitter_barq.Language()
	if language == nil {
		t.Fatal("Error loading Barq grammar")
	}
	assert.Equal(t, "barq", language.Name())
	assert.Equal(t, descriptor.ABIVersion, language.ABIVersion())
}

func TestLanguage_Idempotent(t *testing.T) {
	first := tree_sitter_barq.Language()
	second := tree_sitter_barq.Language()

	assert.Same(t, first, second)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.Equal(t, first.SymbolCount(), second.SymbolCount())
}

func TestLanguage_ConcurrentCallers(t *testing.T) {
	const (
		workers = 8
		calls   = 1000
	)
	want := tree_sitter_barq.Language().Fingerprint()

	start := make(chan struct{})
	results := make([][]*descriptor.Language, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			got := make([]*descriptor.Language, 0, calls)
			for i := 0; i < calls; i++ {
				got = append(got, tree_sitter_barq.Language())
			}
			results[w] = got
		}(w)
	}
	close(start)
	wg.Wait()

	total := 0
	for _, got := range results {
		for _, lang := range got {
			require.NotNil(t, lang)
			require.Equal(t, want, lang.Fingerprint())
			total++
		}
	}
	assert.Equal(t, workers*calls, total)
}

func TestLanguage_MatchesArtifactOnDisk(t *testing.T) {
	data, err := os.ReadFile("grammar.json")
	require.NoError(t, err)

	reloaded, err := descriptor.Load(data)
	require.NoError(t, err)

	lang := tree_sitter_barq.Language()
	assert.NotSame(t, lang, reloaded)
	assert.True(t, lang.Equal(reloaded))
	assert.Equal(t, lang.ArtifactHash(), reloaded.ArtifactHash())
	assert.Equal(t, lang.SymbolCount(), reloaded.SymbolCount())
	assert.Equal(t, lang.FieldCount(), reloaded.FieldCount())
}

func TestLanguage_Tables(t *testing.T) {
	lang := tree_sitter_barq.Language()

	fields := []string{"content", "fallback", "index", "key", "lhs", "operator", "return_type", "rhs", "target", "value"}
	require.Equal(t, uint32(len(fields)), lang.FieldCount())
	for i, name := range fields {
		assert.Equal(t, name, lang.FieldName(descriptor.FieldID(i+1)))
	}

	assert.Equal(t, "module", lang.SymbolName(lang.StartSymbol()))
	word, ok := lang.WordSymbol()
	require.True(t, ok)
	assert.Equal(t, "identifier", lang.SymbolName(word))

	for _, name := range []string{"function", "binary_operation", "struct_type", "inline_assembly_body"} {
		id, ok := lang.SymbolForName(name, true)
		require.True(t, ok, name)
		info, _ := lang.SymbolInfo(id)
		assert.Equal(t, descriptor.KindNonTerminal, info.Kind, name)
		assert.True(t, info.Visible, name)
	}
	for _, name := range []string{"identifier", "int", "float", "break", "continue", "comment"} {
		id, ok := lang.SymbolForName(name, true)
		require.True(t, ok, name)
		assert.Less(t, uint32(id), lang.TokenCount(), name)
	}
	for _, keyword := range []string{"fn", "extern", "asm", "=>", "<<=", "[*]"} {
		_, ok := lang.SymbolForName(keyword, false)
		assert.True(t, ok, keyword)
	}

	hidden, ok := lang.SymbolForName("_expression", true)
	require.True(t, ok)
	info, _ := lang.SymbolInfo(hidden)
	assert.False(t, info.Visible)

	comment, _ := lang.SymbolForName("comment", true)
	assert.Equal(t, []descriptor.Symbol{comment}, lang.Extras())

	subscript, ok := lang.PrecedenceLevel("subscript")
	require.True(t, ok)
	assign, ok := lang.PrecedenceLevel("assign")
	require.True(t, ok)
	assert.Greater(t, subscript, assign)
	assert.Greater(t, lang.ProductionCount(), uint32(0))
}
