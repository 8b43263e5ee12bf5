package crypto

import (
	"crypto/subtle"
	"runtime"
)

// ZeroBytes overwrites sensitive data in place.
func ZeroBytes(data []byte) {
	if data == nil {
		return
	}
	zeros := make([]byte, len(data))
	subtle.ConstantTimeCompare(data, zeros)
	copy(data, zeros)
	runtime.KeepAlive(data)
}

// Wipe erases the private half of the key pair. The pair must not be used
// afterwards.
func (kp *KeyPair) Wipe() {
	if kp == nil {
		return
	}
	ZeroBytes(kp.Private.Data)
}
