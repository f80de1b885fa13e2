package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal, looks non-random", n)
	}
}

func TestHashPassword_EncodedAndSalted(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("Passw0rd@")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(h1, "$argon2id$v=19$m=65536,t=3,p=1$") {
		t.Fatalf("unexpected encoding: %s", h1)
	}
	if strings.Contains(h1, "Passw0rd@") {
		t.Fatalf("hash leaks the password")
	}
	h2, err := HashPassword("Passw0rd@")
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if h1 == h2 {
		t.Fatalf("hashes of the same password should differ by salt")
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword("correct horse battery staple", hash) {
		t.Fatalf("VerifyPassword: expected true for correct password")
	}
	if VerifyPassword("wrong", hash) {
		t.Fatalf("VerifyPassword: expected false for wrong password")
	}
	if VerifyPassword("", hash) {
		t.Fatalf("VerifyPassword: expected false for empty password")
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	t.Parallel()

	for _, enc := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=3,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=3,p=1$!!$a2V5",
		"$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$",
	} {
		if VerifyPassword("pw", enc) {
			t.Fatalf("malformed hash %q verified", enc)
		}
		if _, err := decodeHash(enc); err == nil {
			t.Fatalf("decodeHash(%q) should fail", enc)
		}
	}
}
