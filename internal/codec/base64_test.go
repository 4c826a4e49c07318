package codec

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 1_000_000, 10_485_760}
	rng := rand.New(rand.NewSource(42))

	for _, n := range sizes {
		data := make([]byte, n)
		rng.Read(data)

		enc := Encode(data)
		if len(enc) != EncodedLen(n) {
			t.Errorf("len(Encode(%d bytes)) = %d, want %d", n, len(enc), EncodedLen(n))
		}

		got, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%d bytes): %v", n, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("round trip of %d bytes corrupted data", n)
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	data := []byte("hello, world\x00\xff")
	if Encode(data) != Encode(data) {
		t.Fatal("Encode is not deterministic")
	}
	if got := Encode(data); got != "aGVsbG8sIHdvcmxkAP8=" {
		t.Errorf("Encode = %q, want %q", got, "aGVsbG8sIHdvcmxkAP8=")
	}
}

func TestEncode_Empty(t *testing.T) {
	if got := Encode(nil); got != "" {
		t.Errorf("Encode(nil) = %q, want empty", got)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode("not base64!"); err == nil {
		t.Fatal("expected error for invalid input")
	}
}
