package archive

import (
	"testing"
)

func BenchmarkCursor(b *testing.B) {
	b.Run("WriteUint32", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			w := NewWriter("bench", testCtx)
			for j := uint32(0); j < 4096; j++ {
				v := j
				w.Uint32(&v)
			}
		}
	})

	w := NewWriter("bench", testCtx)
	for j := uint32(0); j < 4096; j++ {
		v := j
		w.Uint32(&v)
	}
	data := w.Bytes()

	b.Run("ReadUint32", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			r := NewReader("bench", data, testCtx)
			var v uint32
			for j := 0; j < 4096; j++ {
				r.Uint32(&v)
			}
		}
	})

	b.Run("String", func(b *testing.B) {
		b.ReportAllocs()
		s := "PF_B8G8R8A8"
		for i := 0; i < b.N; i++ {
			w := NewWriter("bench", testCtx)
			w.String(&s)
			r := NewReader("bench", w.Bytes(), testCtx)
			var out string
			r.String(&out)
		}
	})
}

func BenchmarkCompress(b *testing.B) {
	data := make([]byte, 256*1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	packed, err := Compress(data)
	if err != nil {
		b.Fatal(err)
	}

	b.Run("Compress", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			if _, err := Compress(data); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Decompress", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			if _, err := Decompress(packed); err != nil {
				b.Fatal(err)
			}
		}
	})
}
