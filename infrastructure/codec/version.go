package codec

import "github.com/pomelo-net/pomelo-go/domain"

// versionInfoBytes is the fixed 12-byte version string, precomputed once so
// encode/decode never re-slices a string literal on the hot path.
var versionInfoBytes = buildVersionInfoBytes()

func buildVersionInfoBytes() (b [12]byte) {
	copy(b[:], domain.VersionInfo)
	return b
}
