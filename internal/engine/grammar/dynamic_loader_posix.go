//go:build !windows

package grammar

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

static void* cerium_load_language(const char* path, const char* name) {
    void* handle = dlopen(path, RTLD_LAZY | RTLD_LOCAL);
    if (!handle) return NULL;
    void* (*factory)(void) = (void* (*)(void))dlsym(handle, name);
    if (!factory) return NULL;
    return factory();
}
*/
import "C"
import (
	"unsafe"

	sitter "github.com/tree-sitter/go-tree-sitter"

	domainerrors "tree-sitter-cerium/internal/core/errors"
)

// LoadDynamic opens a compiled parser and calls its tree_sitter_<lang> factory.
// The library stays loaded for the life of the process.
func LoadDynamic(path, langName string) (*sitter.Language, error) {
	symbol := "tree_sitter_" + langName
	cPath := C.CString(path)
	cSymbol := C.CString(symbol)
	defer C.free(unsafe.Pointer(cPath))
	defer C.free(unsafe.Pointer(cSymbol))

	ptr := C.cerium_load_language(cPath, cSymbol)
	if ptr == nil {
		de := &domainerrors.DomainError{Code: domainerrors.CodeNotFound, Message: "failed to load " + symbol}
		return nil, de.WithContext(domainerrors.CtxPath, path).WithContext(domainerrors.CtxLanguage, langName)
	}
	return sitter.NewLanguage(ptr), nil
}
