package auth

import (
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	h, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h == "s3cret" {
		t.Fatal("hash must not equal the password")
	}
	if ok, err := CheckPassword(h, "s3cret"); !ok || err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if ok, err := CheckPassword(h, "wrong"); ok || err != nil {
		t.Fatalf("wrong password: ok=%v err=%v", ok, err)
	}
	if _, err := CheckPassword("not-a-hash", "s3cret"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestPasswordHashing_LongPasswords(t *testing.T) {
	long := strings.Repeat("p", 80)
	h, err := HashPassword(long)
	if err != nil {
		t.Fatalf("hash 80-byte password: %v", err)
	}
	if ok, err := CheckPassword(h, long); !ok || err != nil {
		t.Fatalf("long password rejected: ok=%v err=%v", ok, err)
	}
	// Differences past byte 72 must still matter.
	if ok, _ := CheckPassword(h, long[:79]+"q"); ok {
		t.Fatal("password differing after byte 72 accepted")
	}
	if ok, _ := CheckPassword(h, long[:72]); ok {
		t.Fatal("72-byte prefix accepted for 80-byte password")
	}
}
