package cache

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"path/filepath"
	"strings"
)

const integrityAlgo = "sha512"

var errBadIntegrity = errors.New("malformed integrity string")

// computeIntegrity returns the subresource-integrity string of data.
func computeIntegrity(data []byte) string {
	sum := sha512.Sum512(data)
	return formatIntegrity(sum[:])
}

func formatIntegrity(digest []byte) string {
	return integrityAlgo + "-" + base64.StdEncoding.EncodeToString(digest)
}

func newIntegrityHash() hash.Hash {
	return sha512.New()
}

// integrityHex decodes an integrity string into the hex digest used for
// blob paths.
func integrityHex(integrity string) (string, error) {
	algo, b64, ok := strings.Cut(integrity, "-")
	if !ok || algo != integrityAlgo {
		return "", fmt.Errorf("%w: %q", errBadIntegrity, integrity)
	}
	digest, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(digest) != sha512.Size {
		return "", fmt.Errorf("%w: %q", errBadIntegrity, integrity)
	}
	return hex.EncodeToString(digest), nil
}

// decodeBlobName turns a content-relative blob path ("ab/cdef...") back
// into its digest.
func decodeBlobName(rel string) ([]byte, bool) {
	dir, file := filepath.Split(rel)
	digest, err := hex.DecodeString(filepath.Clean(dir) + file)
	if err != nil || len(digest) != sha512.Size {
		return nil, false
	}
	return digest, true
}
