package main

/*
#include "polycrypt.h"
*/
import "C"

import (
	"unsafe"

	"github.com/zoobzio/polycrypt/internal/boundary"
)

type cResult = C.polycrypt_result

// cBytes copies b into malloc'd memory. An empty slice gives NULL.
func cBytes(b []byte) (*C.uint8_t, C.size_t) {
	if len(b) == 0 {
		return nil, 0
	}
	return (*C.uint8_t)(C.CBytes(b)), C.size_t(len(b))
}

// freeC releases memory from cBytes without wiping it.
func freeC(p *C.uint8_t) {
	C.free(unsafe.Pointer(p))
}

// view aliases n bytes of C memory. The slice is only valid while the
// memory is.
func view(p *C.uint8_t, n C.size_t) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), int(n))
}

// wipe zeroes n bytes of C memory.
func wipe(p *C.uint8_t, n C.size_t) {
	if p == nil || n == 0 {
		return
	}
	C.memset(unsafe.Pointer(p), 0, n)
}

// newResult builds a result holding a malloc'd copy of data.
func newResult(data []byte, code boundary.Code) C.polycrypt_result {
	var out C.polycrypt_result
	out.data.data, out.data.len = cBytes(data)
	out.error_code = C.int32_t(code)
	return out
}

// resultData copies a result's output into Go memory.
func resultData(r *C.polycrypt_result) []byte {
	if r.data.data == nil {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(r.data.data), C.int(r.data.len))
}

func resultCode(r *C.polycrypt_result) boundary.Code {
	return boundary.Code(r.error_code)
}

func resultLen(r *C.polycrypt_result) int {
	return int(r.data.len)
}

// resultIsZero reports whether r holds no buffer and no code, as it does
// after release.
func resultIsZero(r *C.polycrypt_result) bool {
	return r.data.data == nil && r.data.len == 0 && r.error_code == 0
}
