package secrets

import (
	"testing"

	"github.com/zalando/go-keyring"
)

func TestSaveAndLoadAccounts(t *testing.T) {
	keyring.MockInit()

	store := NewStore()
	if err := store.SaveAccounts("alice@gmail.com", "alice@example.com"); err != nil {
		t.Fatalf("SaveAccounts returned error: %v", err)
	}

	gmail, o365, err := store.Accounts()
	if err != nil {
		t.Fatalf("Accounts returned error: %v", err)
	}
	if gmail != "alice@gmail.com" {
		t.Errorf("unexpected gmail account %q", gmail)
	}
	if o365 != "alice@example.com" {
		t.Errorf("unexpected o365 account %q", o365)
	}
}

func TestAccountsMissingEntries(t *testing.T) {
	keyring.MockInit()

	gmail, o365, err := NewStore().Accounts()
	if err != nil {
		t.Fatalf("Accounts returned error: %v", err)
	}
	if gmail != "" || o365 != "" {
		t.Errorf("expected empty accounts, got %q and %q", gmail, o365)
	}
}
