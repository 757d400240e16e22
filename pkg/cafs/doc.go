// Package cafs provides content addressing for file blocks.
//
// Regular files are split into blocks of a fixed size. Each block is
// identified on the backend by its blake2b-512 hash.
//
// The default block size is 1MB.
package cafs
