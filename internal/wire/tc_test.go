package wire

import (
	"reflect"
	"testing"
)

func TestTCRoundTrip(t *testing.T) {
	neighbors := addrs("10.0.0.2", "10.0.0.3", "10.0.0.4")
	body := EncodeTC(65534, neighbors)

	got, err := DecodeTC(body)
	if err != nil {
		t.Fatalf("DecodeTC() error: %v", err)
	}
	if got.ANSN != 65534 {
		t.Errorf("ANSN = %d, want 65534", got.ANSN)
	}
	if !reflect.DeepEqual(got.AdvertisedNeighbors, neighbors) {
		t.Errorf("AdvertisedNeighbors = %+v, want %+v", got.AdvertisedNeighbors, neighbors)
	}
}

func TestTCEmptyNeighbors(t *testing.T) {
	body := EncodeTC(1, nil)
	got, err := DecodeTC(body)
	if err != nil {
		t.Fatalf("DecodeTC() error: %v", err)
	}
	if len(got.AdvertisedNeighbors) != 0 {
		t.Errorf("AdvertisedNeighbors = %+v, want empty", got.AdvertisedNeighbors)
	}
}

func TestDecodeTC_TruncatedTrailing(t *testing.T) {
	body := EncodeTC(1, addrs("10.0.0.2", "10.0.0.3"))
	truncated := append(body, 1, 2, 3) // 3 stray bytes, not a full address

	got, err := DecodeTC(truncated)
	if err != nil {
		t.Fatalf("DecodeTC() error: %v", err)
	}
	if len(got.AdvertisedNeighbors) != 2 {
		t.Errorf("AdvertisedNeighbors = %+v, want 2 addresses", got.AdvertisedNeighbors)
	}
}

func TestDecodeTC_TooShort(t *testing.T) {
	if _, err := DecodeTC([]byte{0, 0}); err != ErrTooShort {
		t.Fatalf("error = %v, want ErrTooShort", err)
	}
}
