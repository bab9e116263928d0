package crypto

import "synctrust/internal/domain"

const loginTag = "synctrust/login/v1"

// LoginMessage is what a client signs to answer a relay login challenge.
func LoginMessage(nonce []byte, instanceID domain.InstanceID) []byte {
	msg := make([]byte, 0, len(loginTag)+len(nonce)+len(instanceID)+2)
	msg = append(msg, loginTag...)
	msg = append(msg, 0)
	msg = append(msg, nonce...)
	msg = append(msg, 0)
	return append(msg, instanceID...)
}
