package codec

import (
	"fmt"
	"testing"
)

func benchObjects(n int) []testObject {
	objs := make([]testObject, n)
	for i := range objs {
		objs[i] = testObject{ID: uint32(i + 1), Label: fmt.Sprintf("label-%d", i%8), Size: 8 * (i%64 + 1), Refs: i%3 + 1} //nolint:gosec // small test ids
	}
	return objs
}

func BenchmarkCodec(b *testing.B) {
	objs := benchObjects(1000)
	data := MustMarshal(JSON{}, objs)

	for _, name := range Names() {
		c, _ := ByName(name)

		b.Run(name+"/marshal", func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			for b.Loop() {
				if _, err := c.Marshal(objs); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run(name+"/unmarshal", func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			var out []testObject
			for b.Loop() {
				if err := c.Unmarshal(data, &out); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
