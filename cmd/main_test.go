package main

import (
	"testing"

	"github.com/zalando/go-keyring"

	"jobmate/etl-service/internal/secrets"
)

func TestKeychainCommand_SaveThenDelete(t *testing.T) {
	keyring.MockInit()

	if err := keychainCommand(true, "app-9", "k3y"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, err := secrets.AdzunaAppKey("app-9"); err != nil || got != "k3y" {
		t.Fatalf("stored key = %q, %v; want k3y", got, err)
	}

	if err := keychainCommand(false, "app-9", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := secrets.AdzunaAppKey("app-9"); err == nil {
		t.Error("key still present after delete")
	}
}

func TestKeychainCommand_Errors(t *testing.T) {
	keyring.MockInit()

	if err := keychainCommand(true, "", "k"); err == nil {
		t.Error("save without app id should fail")
	}
	if err := keychainCommand(false, "missing", ""); err == nil {
		t.Error("deleting an unknown entry should fail")
	}
}
