package codec

import "testing"

func TestPackedUint64Bytes(t *testing.T) {
	cases := []struct {
		v    uint64
		want uint8
	}{
		{0, 1},
		{1, 1},
		{0xFF, 1},
		{0x100, 2},
		{0xFFFF, 2},
		{0x10000, 3},
		{0xFFFFFF, 3},
		{0x100000000, 5},
		{0xFFFFFFFFFFFFFFFF, 8},
	}
	for _, c := range cases {
		if got := PackedUint64Bytes(c.v); got != c.want {
			t.Errorf("PackedUint64Bytes(%#x) = %d, want %d", c.v, got, c.want)
		}
	}
}

func TestPackedRoundTrip(t *testing.T) {
	for n := uint8(1); n <= 8; n++ {
		var max uint64
		if n == 8 {
			max = ^uint64(0)
		} else {
			max = (uint64(1) << (8 * n)) - 1
		}
		for _, v := range []uint64{0, 1, max / 2, max} {
			buf := make([]byte, 8)
			WritePacked(buf, v, n)
			got := ReadPacked(buf, n)
			if got != v {
				t.Errorf("n=%d v=%#x: round trip got %#x", n, v, got)
			}
		}
	}
}
