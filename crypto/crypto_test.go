package crypto

import "testing"

func TestKeyGenAndAddress(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if len(pub.Hex()) != 64 {
		t.Errorf("pubkey hex length: got %d want 64", len(pub.Hex()))
	}
	if addr := pub.Address(); len(addr) != 40 {
		t.Errorf("address length: got %d want 40", len(addr))
	}
	if derived := priv.Public(); derived.Hex() != pub.Hex() {
		t.Error("derived public key does not match")
	}
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("hello timekeeper")
	sig := Sign(priv, data)
	if err := Verify(pub, data, sig); err != nil {
		t.Errorf("valid signature failed: %v", err)
	}
	if err := Verify(pub, []byte("tampered"), sig); err == nil {
		t.Error("tampered data should fail verification")
	}
}

func TestPubKeyFromHexRejectsWrongLength(t *testing.T) {
	if _, err := PubKeyFromHex("deadbeef"); err == nil {
		t.Error("short hex should be rejected")
	}
}
