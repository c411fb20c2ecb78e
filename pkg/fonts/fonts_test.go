package fonts

import (
	"encoding/base64"
	"testing"
)

func TestFaceCached(t *testing.T) {
	a, err := Face(12.1, false)
	if err != nil {
		t.Fatalf("Face: %v", err)
	}
	b, _ := Face(12.0, false)
	if a != b {
		t.Error("faces of the same quantized size should be shared")
	}
	c, _ := Face(12.0, true)
	if a == c {
		t.Error("bold and regular faces must differ")
	}
}

func TestFaceMinimumSize(t *testing.T) {
	f, err := Face(0, false)
	if err != nil || f == nil {
		t.Fatalf("Face(0) = %v, %v", f, err)
	}
	if f.Metrics().Height <= 0 {
		t.Error("face has no height")
	}
}

func TestBase64(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(RegularBase64())
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != len(RegularTTF()) {
		t.Errorf("decoded %d bytes, want %d", len(raw), len(RegularTTF()))
	}
	if BoldBase64() == RegularBase64() {
		t.Error("bold and regular encodings are identical")
	}
}
