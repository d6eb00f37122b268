package entropy

import (
	"crypto/rand"
	"encoding/binary"
)

// localUint16 draws a uniform 16-bit integer from the platform CSPRNG. A
// failed read from crypto/rand is unrecoverable process state; rand.Read
// panics internally on modern Go rather than returning an error, so this
// path cannot fail at runtime.
func localUint16() uint16 {
	var buf [2]byte
	_, _ = rand.Read(buf[:])
	return binary.BigEndian.Uint16(buf[:])
}
