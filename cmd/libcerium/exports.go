package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

// C copies of the descriptor strings, allocated once and never freed.
var (
	cNames        [len(descriptors)]*C.char
	cFingerprints [len(descriptors)]*C.char
)

func init() {
	for i, desc := range descriptors {
		cNames[i] = C.CString(desc.Name())
		cFingerprints[i] = C.CString(desc.Fingerprint())
	}
}

//export cerium_language_barq
func cerium_language_barq() C.uintptr_t {
	return C.uintptr_t(handleBarq)
}

//export cerium_language_cerium
func cerium_language_cerium() C.uintptr_t {
	return C.uintptr_t(handleCerium)
}

//export cerium_language_name
func cerium_language_name(handle C.uintptr_t) *C.char {
	if _, ok := lookup(uintptr(handle)); !ok {
		return nil
	}
	return cNames[uintptr(handle)-1]
}

//export cerium_language_abi_version
func cerium_language_abi_version(handle C.uintptr_t) C.uint32_t {
	desc, ok := lookup(uintptr(handle))
	if !ok {
		return 0
	}
	return C.uint32_t(desc.ABIVersion())
}

//export cerium_language_symbol_count
func cerium_language_symbol_count(handle C.uintptr_t) C.uint32_t {
	desc, ok := lookup(uintptr(handle))
	if !ok {
		return 0
	}
	return C.uint32_t(desc.SymbolCount())
}

//export cerium_language_field_count
func cerium_language_field_count(handle C.uintptr_t) C.uint32_t {
	desc, ok := lookup(uintptr(handle))
	if !ok {
		return 0
	}
	return C.uint32_t(desc.FieldCount())
}

//export cerium_language_fingerprint
func cerium_language_fingerprint(handle C.uintptr_t) *C.char {
	if _, ok := lookup(uintptr(handle)); !ok {
		return nil
	}
	return cFingerprints[uintptr(handle)-1]
}
