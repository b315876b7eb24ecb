package items

import (
	"errors"
	"testing"
)

func TestCustomization_RoundTrip(t *testing.T) {
	for fabric := uint8(0); fabric <= 7; fabric++ {
		for body := uint8(0); body <= 7; body++ {
			sum := PackCustomization(body, fabric)
			b, f, err := UnpackCustomization(int(sum))
			if err != nil {
				t.Fatalf("unpack(%d): %v", sum, err)
			}
			if b != body || f != fabric {
				t.Fatalf("unpack(%d)=(%d,%d) want=(%d,%d)", sum, b, f, body, fabric)
			}
		}
	}
}

func TestUnpackCustomization_RejectsGarbage(t *testing.T) {
	for _, sum := range []int{8, 16, 24, 31, 256, 300, -1} {
		if _, _, err := UnpackCustomization(sum); !errors.Is(err, ErrInvalidCustomization) {
			t.Fatalf("sum=%d err=%v want ErrInvalidCustomization", sum, err)
		}
	}
}

func TestCustomize_WithinBounds(t *testing.T) {
	remakes := Remakes{0x1234: {BodyCount: 5, FabricCount: 1}}
	it, err := Customize(0x1234, 34, remakes)
	if err != nil {
		t.Fatalf("customize: %v", err)
	}
	if it.Body != 2 || it.Fabric != 1 {
		t.Fatalf("body=%d fabric=%d want=2,1", it.Body, it.Fabric)
	}
	if it.CountWord() != 34 {
		t.Fatalf("count word=%d want=34", it.CountWord())
	}
}

func TestCustomize_FabricOutOfBounds(t *testing.T) {
	remakes := Remakes{0x1234: {BodyCount: 5, FabricCount: 1}}
	b, f, err := UnpackCustomization(97)
	if err != nil || b != 1 || f != 3 {
		t.Fatalf("unpack(97)=(%d,%d,%v) want=(1,3,nil)", b, f, err)
	}
	if _, err := Customize(0x1234, 97, remakes); !errors.Is(err, ErrInvalidCustomization) {
		t.Fatalf("err=%v want ErrInvalidCustomization", err)
	}
	remakes[0x1234] = Remake{BodyCount: 5, FabricCount: 7}
	if _, err := Customize(0x1234, 97, remakes); err != nil {
		t.Fatalf("wider bound should accept: %v", err)
	}
}

func TestCustomize_NoMetadata(t *testing.T) {
	if _, err := Customize(0x4321, 1, Remakes{}); !errors.Is(err, ErrInvalidCustomization) {
		t.Fatalf("err=%v want ErrInvalidCustomization", err)
	}
	if _, err := Customize(0x4321, 0, Remakes{0x4321: {BodyCount: 1}}); !errors.Is(err, ErrInvalidCustomization) {
		t.Fatalf("zero sum err=%v want ErrInvalidCustomization", err)
	}
}

func TestCustomizeParts_Sums(t *testing.T) {
	remakes := Remakes{0x1234: {BodyCount: 5, FabricCount: 1}}
	it, err := CustomizeParts(0x1234, 2, 32, remakes)
	if err != nil || it.Body != 2 || it.Fabric != 1 {
		t.Fatalf("it=%+v err=%v", it, err)
	}
}

func TestDescribe(t *testing.T) {
	if Describe(0x1, Remakes{}) != "" {
		t.Fatalf("expected empty description")
	}
	got := Describe(0x1, Remakes{0x1: {BodyCount: 1, FabricCount: 1, BodyNames: []string{"White", "Black"}}})
	want := "Body:\n0=White\n1=Black\nFabric:\n0=Variant 0\n32=Variant 1"
	if got != want {
		t.Fatalf("describe=%q want=%q", got, want)
	}
}
