package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeAddressRoundTrip(t *testing.T) {
	inputs := []string{
		"0xffffffffffffffffffffffffffffffffff010000",
		"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF010001",
		"0X00000000000000000000000000000000000000aB",
	}
	for _, input := range inputs {
		addr, err := DecodeAddress(input)
		if err != nil {
			t.Fatalf("decode %q: %v", input, err)
		}
		want := "0x" + strings.ToLower(trimPrefix(input))
		if got := addr.Hex(); got != want {
			t.Errorf("round trip %q: got %s want %s", input, got, want)
		}
	}
}

func TestDecodeAddressRejectsWrongLength(t *testing.T) {
	for _, size := range []int{0, 19, 21} {
		input := "0x" + strings.Repeat("ab", size)
		if _, err := DecodeAddress(input); !errors.Is(err, ErrBadLength) {
			t.Errorf("%d bytes: expected ErrBadLength, got %v", size, err)
		}
	}
}

func TestDecodeAddressRejectsBadHex(t *testing.T) {
	inputs := []string{
		"0x" + strings.Repeat("zz", 20),
		"0x" + strings.Repeat("a", 39),
	}
	for _, input := range inputs {
		if _, err := DecodeAddress(input); !errors.Is(err, ErrBadHex) {
			t.Errorf("%q: expected ErrBadHex, got %v", input, err)
		}
	}
}

func TestDecodeData(t *testing.T) {
	data, err := DecodeData("0x")
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(data))
	}
	data, err = DecodeData("")
	if err != nil || len(data) != 0 {
		t.Fatalf("decode bare empty: %v len=%d", err, len(data))
	}

	data, err = DecodeData("0xDEADbeef00")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := data.Hex(); got != "0xdeadbeef00" {
		t.Errorf("unexpected encoding %s", got)
	}

	if _, err := DecodeData("0xabc"); !errors.Is(err, ErrBadHex) {
		t.Errorf("odd length: expected ErrBadHex, got %v", err)
	}
}

func TestDecodeValueDefaultsToZero(t *testing.T) {
	for _, input := range []string{"", "0x"} {
		v, err := DecodeValue(input)
		if err != nil {
			t.Fatalf("decode %q: %v", input, err)
		}
		if !v.IsZero() {
			t.Errorf("%q: expected zero value", input)
		}
		if got := v.Hex(); got != "0x"+strings.Repeat("00", ValueLength) {
			t.Errorf("%q: unexpected encoding %s", input, got)
		}
	}
}

func TestDecodeValuePadsLeft(t *testing.T) {
	v, err := DecodeValue("0x0de0b6b3a7640000")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := v.Big().String(); got != "1000000000000000000" {
		t.Errorf("unexpected amount %s", got)
	}
	odd, err := DecodeValue("0xabc")
	if err != nil {
		t.Fatalf("decode odd: %v", err)
	}
	if got := odd.Big().Int64(); got != 0xabc {
		t.Errorf("unexpected odd amount %d", got)
	}

	canonical := "0x" + strings.Repeat("00", 30) + "1234"
	v, err = DecodeValue(canonical)
	if err != nil {
		t.Fatalf("decode canonical: %v", err)
	}
	if got := v.Hex(); got != canonical {
		t.Errorf("round trip: got %s want %s", got, canonical)
	}

	if _, err := DecodeValue("0x" + strings.Repeat("11", 33)); !errors.Is(err, ErrBadLength) {
		t.Errorf("expected ErrBadLength, got %v", err)
	}
	if _, err := DecodeValue("0xgg"); !errors.Is(err, ErrBadHex) {
		t.Errorf("expected ErrBadHex, got %v", err)
	}
}

func TestDecodeTxHash(t *testing.T) {
	h, err := DecodeTxHash("0xabcd")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h[HashLength-2] != 0xab || h[HashLength-1] != 0xcd {
		t.Errorf("expected left padded hash, got %x", h)
	}
	if _, err := DecodeTxHash("0x"); !errors.Is(err, ErrBadLength) {
		t.Errorf("empty hash: expected ErrBadLength, got %v", err)
	}
}

func TestDecodeErrorNamesField(t *testing.T) {
	_, cause := DecodeAddress("0x01")
	err := &DecodeError{Field: "To", Err: cause}
	if !errors.Is(err, ErrBadLength) {
		t.Fatalf("expected wrapped ErrBadLength")
	}
	if !strings.Contains(err.Error(), "invalid To") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestEncode(t *testing.T) {
	if got := Encode([]byte{0x12, 0x34}); got != "0x1234" {
		t.Errorf("got %s", got)
	}
	if got := Encode(nil); got != "0x" {
		t.Errorf("got %s", got)
	}
}

func TestDecodeRejectsSurroundingWhitespace(t *testing.T) {
	if _, err := DecodeAddress(" 0xffffffffffffffffffffffffffffffffff010000"); !errors.Is(err, ErrBadHex) {
		t.Errorf("address: expected ErrBadHex, got %v", err)
	}
	if _, err := DecodeData("0xabcd "); !errors.Is(err, ErrBadHex) {
		t.Errorf("data: expected ErrBadHex, got %v", err)
	}
	for _, input := range []string{"  ", " 0x2a", "0x2a\n"} {
		if _, err := DecodeValue(input); !errors.Is(err, ErrBadHex) {
			t.Errorf("value %q: expected ErrBadHex, got %v", input, err)
		}
	}
	if _, err := DecodeTxHash(" 0xabcd"); !errors.Is(err, ErrBadHex) {
		t.Errorf("tx hash: expected ErrBadHex, got %v", err)
	}
}
