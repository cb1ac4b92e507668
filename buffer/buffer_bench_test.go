package buffer

import "testing"

func BenchmarkOutput_WriteInt64(b *testing.B) {
	out := NewOutput(1024)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if out.Count() >= 1024-8 {
			out.Reset()
		}
		out.WriteInt64(int64(i))
	}
}

func BenchmarkOutput_GrowFromSmall(b *testing.B) {
	payload := make([]byte, 64)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		out := NewOutput(16)
		for range 64 {
			out.WriteRaw(payload)
		}
	}
}

func BenchmarkInput_ReadString(b *testing.B) {
	out := NewOutput(64)
	_ = out.WriteString("benchmark payload")
	data := out.Bytes()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		in := NewInput(data)
		if _, err := in.ReadString(); err != nil {
			b.Fatal(err)
		}
	}
}
