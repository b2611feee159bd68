// Command libpolycrypt builds the polycrypt C library:
//
//	go build -buildmode=c-shared -o libpolycrypt.so ./cmd/libpolycrypt
//
// Every operation returns a polycrypt_result by value. On success data holds
// a buffer allocated with malloc and error_code is 0; on failure data is
// empty and error_code is nonzero. Each result must be passed to
// polycrypt_release_result exactly once; releasing the same struct again is
// a no-op because release zeroes it.
//
// Inputs are copied before use and never retained. Key copies are wiped
// before the call returns. The key is checked before any other argument,
// so a bad key reports InvalidKeyLength even when the data is also bad.
package main

/*
#include "polycrypt.h"
*/
import "C"

import (
	"math"
	"unsafe"

	"github.com/zoobzio/polycrypt"
	"github.com/zoobzio/polycrypt/internal/boundary"
)

func main() {}

//export polycrypt_abi_version
func polycrypt_abi_version() C.uint32_t {
	return C.uint32_t(boundary.ABIVersion)
}

//export polycrypt_init_diagnostics
func polycrypt_init_diagnostics() {
	boundary.InitDiagnostics()
}

//export polycrypt_encrypt
func polycrypt_encrypt(data *C.uint8_t, dataLen C.size_t, key *C.uint8_t, keyLen C.size_t) C.polycrypt_result {
	return raw(data, dataLen, key, keyLen, (*boundary.Engine).Encrypt)
}

//export polycrypt_decrypt
func polycrypt_decrypt(data *C.uint8_t, dataLen C.size_t, key *C.uint8_t, keyLen C.size_t) C.polycrypt_result {
	return raw(data, dataLen, key, keyLen, (*boundary.Engine).Decrypt)
}

//export polycrypt_encrypt_fields
func polycrypt_encrypt_fields(record *C.uint8_t, recordLen C.size_t, fields *C.uint8_t, fieldsLen C.size_t, key *C.uint8_t, keyLen C.size_t) C.polycrypt_result {
	return structured(record, recordLen, fields, fieldsLen, key, keyLen, (*boundary.Engine).EncryptFields)
}

//export polycrypt_decrypt_fields
func polycrypt_decrypt_fields(record *C.uint8_t, recordLen C.size_t, fields *C.uint8_t, fieldsLen C.size_t, key *C.uint8_t, keyLen C.size_t) C.polycrypt_result {
	return structured(record, recordLen, fields, fieldsLen, key, keyLen, (*boundary.Engine).DecryptFields)
}

//export polycrypt_encrypt_fields_in_batch
func polycrypt_encrypt_fields_in_batch(records *C.uint8_t, recordsLen C.size_t, fields *C.uint8_t, fieldsLen C.size_t, key *C.uint8_t, keyLen C.size_t) C.polycrypt_result {
	return structured(records, recordsLen, fields, fieldsLen, key, keyLen, (*boundary.Engine).EncryptFieldsInBatch)
}

//export polycrypt_decrypt_fields_in_batch
func polycrypt_decrypt_fields_in_batch(records *C.uint8_t, recordsLen C.size_t, fields *C.uint8_t, fieldsLen C.size_t, key *C.uint8_t, keyLen C.size_t) C.polycrypt_result {
	return structured(records, recordsLen, fields, fieldsLen, key, keyLen, (*boundary.Engine).DecryptFieldsInBatch)
}

//export polycrypt_release_result
func polycrypt_release_result(result *C.polycrypt_result) {
	if result == nil {
		return
	}
	if result.data.data != nil {
		wipe(result.data.data, result.data.len)
		C.free(unsafe.Pointer(result.data.data))
	}
	*result = C.polycrypt_result{}
}

func raw(data *C.uint8_t, dataLen C.size_t, key *C.uint8_t, keyLen C.size_t, op func(*boundary.Engine, []byte, []byte) boundary.Result) C.polycrypt_result {
	k, ok := goKey(key, keyLen)
	if !ok {
		return failure(boundary.InvalidKeyLength)
	}
	defer clear(k)

	in, ok := goBytes(data, dataLen)
	if !ok {
		return failure(boundary.MalformedInput)
	}

	return toC(op(boundary.Default(), in, k))
}

func structured(payload *C.uint8_t, payloadLen C.size_t, fields *C.uint8_t, fieldsLen C.size_t, key *C.uint8_t, keyLen C.size_t, op func(*boundary.Engine, []byte, []byte, []byte) boundary.Result) C.polycrypt_result {
	k, ok := goKey(key, keyLen)
	if !ok {
		return failure(boundary.InvalidKeyLength)
	}
	defer clear(k)

	in, ok := goBytes(payload, payloadLen)
	if !ok {
		return failure(boundary.MalformedInput)
	}
	names, ok := goBytes(fields, fieldsLen)
	if !ok {
		return failure(boundary.MalformedInput)
	}

	return toC(op(boundary.Default(), in, names, k))
}

// goKey copies a key and checks its length.
func goKey(p *C.uint8_t, n C.size_t) ([]byte, bool) {
	k, ok := goBytes(p, n)
	if !ok {
		return nil, false
	}
	if polycrypt.ValidateKey(k) != nil {
		clear(k)
		return nil, false
	}
	return k, true
}

// goBytes copies a C buffer into Go memory. A NULL pointer is only valid
// with a zero length.
func goBytes(p *C.uint8_t, n C.size_t) ([]byte, bool) {
	if n == 0 {
		return []byte{}, true
	}
	if p == nil || uint64(n) > math.MaxInt {
		return nil, false
	}
	out := make([]byte, int(n))
	copy(out, view(p, n))
	return out, true
}

// toC moves a Result into a C result, copying the output into malloc'd memory.
func toC(res boundary.Result) C.polycrypt_result {
	defer res.Release()

	if res.Code != boundary.OK {
		return failure(res.Code)
	}

	var out C.polycrypt_result
	out.data.data, out.data.len = cBytes(res.Data)
	return out
}

func failure(code boundary.Code) C.polycrypt_result {
	var out C.polycrypt_result
	out.error_code = C.int32_t(code)
	return out
}
