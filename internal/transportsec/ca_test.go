package transportsec

import (
	"net"
	"os"
	"testing"
	"time"
)

func TestInitializeCA(t *testing.T) {
	ca := NewCertAuthority()

	if err := ca.Initialize(); err != nil {
		t.Fatalf("Failed to initialize CA: %v", err)
	}
	if !ca.IsInitialized() {
		t.Error("CA should be initialized")
	}
	if ca.rootCert == nil || ca.rootKey == nil {
		t.Fatal("root cert/key should not be nil")
	}
	if !ca.rootCert.IsCA {
		t.Error("root certificate should be a CA")
	}

	expectedExpiry := time.Now().Add(rootCAValidity)
	if ca.rootCert.NotAfter.Before(expectedExpiry.Add(-time.Hour)) {
		t.Errorf("root cert expiry too early: %v, expected around %v", ca.rootCert.NotAfter, expectedExpiry)
	}
}

func TestSaveLoadRootRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "nebulastore-ca-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	ca := NewCertAuthority()
	if err := ca.Initialize(); err != nil {
		t.Fatalf("failed to initialize CA: %v", err)
	}
	if err := ca.SaveRootToFile(dir); err != nil {
		t.Fatalf("failed to save CA root: %v", err)
	}

	loaded := NewCertAuthority()
	if err := loaded.LoadRootFromFile(dir); err != nil {
		t.Fatalf("failed to load CA root: %v", err)
	}
	if !loaded.IsInitialized() {
		t.Fatal("loaded CA should be initialized")
	}
	if loaded.rootCert.SerialNumber.Cmp(ca.rootCert.SerialNumber) != 0 {
		t.Error("loaded CA root serial should match the saved one")
	}
}

func TestIssueNodeCertificate(t *testing.T) {
	ca := NewCertAuthority()
	if err := ca.Initialize(); err != nil {
		t.Fatalf("failed to initialize CA: %v", err)
	}

	cert, err := ca.IssueNodeCertificate("node-a", "storage", []string{"storage-0.local"}, []net.IP{net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("failed to issue node certificate: %v", err)
	}
	if cert.Leaf == nil {
		t.Fatal("issued certificate should have a parsed leaf")
	}
	if err := ca.VerifyCertificate(cert.Leaf); err != nil {
		t.Errorf("issued certificate should verify against the CA: %v", err)
	}

	cached, ok := ca.GetCachedCert("storage-node-a")
	if !ok {
		t.Error("issued certificate should be cached")
	}
	if cached.Cert.SerialNumber.Cmp(cert.Leaf.SerialNumber) != 0 {
		t.Error("cached certificate should match the issued one")
	}
}

func TestIssueClientCertificate(t *testing.T) {
	ca := NewCertAuthority()
	if err := ca.Initialize(); err != nil {
		t.Fatalf("failed to initialize CA: %v", err)
	}

	cert, err := ca.IssueClientCertificate("op-1")
	if err != nil {
		t.Fatalf("failed to issue client certificate: %v", err)
	}
	if err := ca.VerifyCertificate(cert.Leaf); err != nil {
		t.Errorf("issued client certificate should verify against the CA: %v", err)
	}
	if len(cert.Leaf.ExtKeyUsage) != 1 {
		t.Errorf("client certificate should carry exactly ClientAuth, got %v", cert.Leaf.ExtKeyUsage)
	}
}

func TestVerifyCertificateRejectsUnrelatedCA(t *testing.T) {
	ca := NewCertAuthority()
	if err := ca.Initialize(); err != nil {
		t.Fatalf("failed to initialize CA: %v", err)
	}
	other := NewCertAuthority()
	if err := other.Initialize(); err != nil {
		t.Fatalf("failed to initialize second CA: %v", err)
	}

	cert, err := other.IssueNodeCertificate("node-b", "meta", nil, nil)
	if err != nil {
		t.Fatalf("failed to issue certificate: %v", err)
	}
	if err := ca.VerifyCertificate(cert.Leaf); err == nil {
		t.Error("certificate issued by a different CA should not verify")
	}
}
