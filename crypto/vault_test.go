package crypto

import "testing"

type fakeCreds struct {
	APIKey string `json:"api_key"`
}

func TestVault_SealOpenRoundTrip(t *testing.T) {
	v := NewVault([]byte("a deployment-wide master secret, 32+ bytes long"))

	blob, err := v.Seal("user-1", "structurednotes", fakeCreds{APIKey: "secret-xyz"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	var out fakeCreds
	if err := v.Open("user-1", "structurednotes", blob, &out); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if out.APIKey != "secret-xyz" {
		t.Fatalf("expected api_key round-tripped, got %q", out.APIKey)
	}
}

func TestVault_OpenFailsForWrongUser(t *testing.T) {
	v := NewVault([]byte("a deployment-wide master secret, 32+ bytes long"))

	blob, err := v.Seal("user-1", "structurednotes", fakeCreds{APIKey: "secret-xyz"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	var out fakeCreds
	if err := v.Open("user-2", "structurednotes", blob, &out); err == nil {
		t.Fatalf("expected Open to fail with mismatched key derivation")
	}
}
