package transportsec

import (
	"os"
	"testing"
)

func TestSaveLoadCertRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "nebulastore-cert-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	ca := NewCertAuthority()
	if err := ca.Initialize(); err != nil {
		t.Fatalf("failed to initialize CA: %v", err)
	}
	cert, err := ca.IssueNodeCertificate("node-a", "storage", nil, nil)
	if err != nil {
		t.Fatalf("failed to issue certificate: %v", err)
	}

	if err := SaveCertToFile(cert, dir); err != nil {
		t.Fatalf("failed to save certificate: %v", err)
	}
	if err := SaveCACertToFile(ca.GetRootCACert(), dir); err != nil {
		t.Fatalf("failed to save CA certificate: %v", err)
	}
	if !CertExists(dir) {
		t.Fatal("CertExists should report true after saving a full cert set")
	}

	loaded, err := LoadCertFromFile(dir)
	if err != nil {
		t.Fatalf("failed to load certificate: %v", err)
	}
	if loaded.Leaf.SerialNumber.Cmp(cert.Leaf.SerialNumber) != 0 {
		t.Error("loaded certificate should match the saved one")
	}

	caCert, err := LoadCACertFromFile(dir)
	if err != nil {
		t.Fatalf("failed to load CA certificate: %v", err)
	}
	if err := ValidateCertChain(loaded.Leaf, caCert); err != nil {
		t.Errorf("loaded certificate should validate against the loaded CA: %v", err)
	}
}

func TestCertNeedsRotation(t *testing.T) {
	if !CertNeedsRotation(nil) {
		t.Error("a nil certificate should be reported as needing rotation")
	}

	ca := NewCertAuthority()
	if err := ca.Initialize(); err != nil {
		t.Fatalf("failed to initialize CA: %v", err)
	}
	cert, err := ca.IssueNodeCertificate("node-a", "storage", nil, nil)
	if err != nil {
		t.Fatalf("failed to issue certificate: %v", err)
	}
	if CertNeedsRotation(cert.Leaf) {
		t.Error("a freshly issued certificate should not need rotation")
	}
}
