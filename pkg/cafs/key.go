package cafs

import (
	"encoding/hex"
	"fmt"

	blake2b "github.com/minio/blake2b-simd"
)

// KeySize for blake2b algo
const KeySize = blake2b.Size

// NewKey creates a new key from data
func NewKey(data []byte) (Key, error) {
	var k Key
	n := copy(k[:], data)
	if n != KeySize {
		return Key{}, &BadKeySize{Key: data}
	}
	return k, nil
}

// MustNewKey creates a new key from data but panics if there is an error
func MustNewKey(data []byte) Key {
	k, e := NewKey(data)
	if e != nil {
		panic(e.Error())
	}
	return k
}

// Sum computes the key of a data block
func Sum(data []byte) Key {
	return blake2b.Sum512(data)
}

// Key type for CAFS keys
type Key [KeySize]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero tells if the key is unset
func (k Key) IsZero() bool {
	return k == Key{}
}

// BadKeySize is an error that's returned when the key to create has an invalid size.
type BadKeySize struct {
	Key []byte
}

func (b *BadKeySize) Error() string {
	return fmt.Sprintf("%x has invalid size of %d, expected %d", b.Key, len(b.Key), KeySize)
}
