// Package token implements encode/decode for the two token types the
// handshake exchanges: the connect token (issued out of band by a backend,
// carried to the server inside a REQUEST packet) and the challenge token
// (issued by the server, echoed back by the client). Adapted from the
// teacher's domain/network/serviceframe.Frame convention of a single
// Marshal/Unmarshal pair per wire type, generalized here into a small
// per-field reader/writer since token layouts are variable-length
// (server address lists) where Frame's fixed layout does not apply.
package token

import (
	"encoding/binary"
	"net/netip"

	"github.com/pomelo-net/pomelo-go/domain"
)

const (
	addressTypeV4 = 0
	addressTypeV6 = 1

	addressV4Bytes = 1 + 4 + 2  // type + ipv4 + port
	addressV6Bytes = 1 + 16 + 2 // type + ipv6 + port
)

func addressWireLen(a netip.AddrPort) int {
	if a.Addr().Is4() {
		return addressV4Bytes
	}
	return addressV6Bytes
}

func writeAddress(dst []byte, a netip.AddrPort) int {
	if a.Addr().Is4() {
		dst[0] = addressTypeV4
		ip := a.Addr().As4()
		copy(dst[1:5], ip[:])
		binary.LittleEndian.PutUint16(dst[5:7], a.Port())
		return addressV4Bytes
	}
	dst[0] = addressTypeV6
	ip := a.Addr().As16()
	copy(dst[1:17], ip[:])
	binary.LittleEndian.PutUint16(dst[17:19], a.Port())
	return addressV6Bytes
}

func readAddress(src []byte) (netip.AddrPort, int, error) {
	if len(src) < 1 {
		return netip.AddrPort{}, 0, domain.ErrMalformed
	}
	switch src[0] {
	case addressTypeV4:
		if len(src) < addressV4Bytes {
			return netip.AddrPort{}, 0, domain.ErrMalformed
		}
		var b [4]byte
		copy(b[:], src[1:5])
		port := binary.LittleEndian.Uint16(src[5:7])
		return netip.AddrPortFrom(netip.AddrFrom4(b), port), addressV4Bytes, nil
	case addressTypeV6:
		if len(src) < addressV6Bytes {
			return netip.AddrPort{}, 0, domain.ErrMalformed
		}
		var b [16]byte
		copy(b[:], src[1:17])
		port := binary.LittleEndian.Uint16(src[17:19])
		return netip.AddrPortFrom(netip.AddrFrom16(b), port), addressV6Bytes, nil
	default:
		return netip.AddrPort{}, 0, domain.ErrMalformed
	}
}

func writeAddresses(dst []byte, addrs []netip.AddrPort) (int, error) {
	if len(addrs) > domain.MaxServerAddresses {
		return 0, domain.ErrMalformed
	}
	if len(dst) < 4 {
		return 0, domain.ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint32(dst, uint32(len(addrs)))
	pos := 4
	for _, a := range addrs {
		n := addressWireLen(a)
		if len(dst) < pos+n {
			return 0, domain.ErrBufferTooSmall
		}
		writeAddress(dst[pos:], a)
		pos += n
	}
	return pos, nil
}

func readAddresses(src []byte) ([]netip.AddrPort, int, error) {
	if len(src) < 4 {
		return nil, 0, domain.ErrMalformed
	}
	count := binary.LittleEndian.Uint32(src)
	if count > domain.MaxServerAddresses {
		return nil, 0, domain.ErrMalformed
	}
	pos := 4
	addrs := make([]netip.AddrPort, 0, count)
	for i := uint32(0); i < count; i++ {
		a, n, err := readAddress(src[pos:])
		if err != nil {
			return nil, 0, err
		}
		addrs = append(addrs, a)
		pos += n
	}
	return addrs, pos, nil
}
