package token

import "github.com/pomelo-net/pomelo-go/domain"

var versionInfoBytes = buildVersionInfoBytes()

func buildVersionInfoBytes() (b [12]byte) {
	copy(b[:], domain.VersionInfo)
	return b
}
