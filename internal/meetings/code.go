package meetings

import (
	"crypto/rand"
	"math/big"
)

const (
	codeLength = 6
	linkLength = 26

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	linkAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// newCode returns a 6-character uppercase alphanumeric join code.
func newCode() (string, error) {
	return randomString(codeAlphabet, codeLength)
}

// newLink returns a 26-character lowercase slug for share links.
func newLink() (string, error) {
	return randomString(linkAlphabet, linkLength)
}

func randomString(alphabet string, n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[v.Int64()]
	}
	return string(b), nil
}
