package tree_sitter_cerium_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tree_sitter_barq "tree-sitter-cerium/bindings/go/barq"
	tree_sitter_cerium "tree-sitter-cerium/bindings/go/cerium"
	"tree-sitter-cerium/pkg/descriptor"
)

func TestCanLoadGrammar(t *testing.T) {
	language := tree_sitter_cerium.Language()
	if language == nil {
		t.Fatal("Error loading Cerium grammar")
	}
	assert.Equal(t, "cerium", language.Name())
	assert.Equal(t, "module", language.SymbolName(language.StartSymbol()))
}

func TestLanguage_Idempotent(t *testing.T) {
	assert.Same(t, tree_sitter_cerium.Language(), tree_sitter_cerium.Language())
}

func TestLanguage_DistinctFromBarq(t *testing.T) {
	for i := 0; i < 100; i++ {
		cerium := tree_sitter_cerium.Language()
		barq := tree_sitter_barq.Language()

		require.False(t, cerium.Equal(barq))
		require.False(t, barq.Equal(cerium))
		require.NotEqual(t, cerium.Fingerprint(), barq.Fingerprint())
	}
}

func TestLanguage_InterleavedConcurrentCallers(t *testing.T) {
	ceriumPrint := tree_sitter_cerium.Language().Fingerprint()
	barqPrint := tree_sitter_barq.Language().Fingerprint()

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				var lang *descriptor.Language
				want := ceriumPrint
				if i%2 == 0 {
					lang = tree_sitter_cerium.Language()
				} else {
					lang, want = tree_sitter_barq.Language(), barqPrint
				}
				if lang == nil || lang.Fingerprint() != want {
					errs <- "inconsistent descriptor"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestLanguage_SharesBarqRuleSet(t *testing.T) {
	cerium := tree_sitter_cerium.Language()
	barq := tree_sitter_barq.Language()

	assert.Equal(t, barq.SymbolCount(), cerium.SymbolCount())
	assert.Equal(t, barq.FieldCount(), cerium.FieldCount())
	assert.Equal(t, barq.ProductionCount(), cerium.ProductionCount())
	assert.NotEqual(t, barq.ArtifactHash(), cerium.ArtifactHash())
}
