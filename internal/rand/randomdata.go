// Package rand produces random test payloads and names.
package rand

import (
	"bytes"
	"math/rand"
	"sync"
	"time"
)

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	return randBytes(n)
}

// String returns a random string
func String(n int) string {
	return string(randBytes(n))
}

// LetterBytes returns a random slice of bytes picked in the [0-9]|[a-z] range
func LetterBytes(n int) []byte {
	return randLetterBytes(n)
}

// LetterString returns a random string picked in the [0-9]|[a-z] range
func LetterString(n int) string {
	return string(randLetterBytes(n))
}

// Intn returns a random int in [0, n)
func Intn(n int) int {
	onceSource.Do(seed)
	randMutex.Lock()
	defer randMutex.Unlock()
	return rgen.Intn(n)
}

var (
	onceSource  sync.Once
	rgen        *rand.Rand
	onceLetters sync.Once
	randMutex   sync.Mutex
	letters     []byte
)

func seed() {
	src := rand.NewSource(time.Now().UnixNano())
	rgen = rand.New(src) // #nosec
}

func randBytes(n int) []byte {
	onceSource.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

func makeLetters() {
	// adds "a" to pad over 256 locations (0-9 U a-z makes up to 252 only and we want to cover the range of uint8)
	letters = bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz0123456789a"), 7)
}

func randLetterBytes(n int) []byte {
	onceLetters.Do(makeLetters)
	buf := randBytes(n)
	for i, b := range buf {
		buf[i] = letters[b]
	}
	return buf
}
