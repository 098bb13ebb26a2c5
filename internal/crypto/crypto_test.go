package crypto

import (
	"crypto/tls"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/tunnelpanel/tunnelpanel/internal/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	database.DB = db
	if err := db.AutoMigrate(&database.Setting{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	setupTestDB(t)

	ciphertext, err := Encrypt("hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ciphertext == "hunter2" {
		t.Fatal("ciphertext equals plaintext")
	}

	plaintext, err := Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "hunter2" {
		t.Fatalf("expected hunter2, got %q", plaintext)
	}
}

func TestEncryptPersistsKey(t *testing.T) {
	setupTestDB(t)

	if _, err := Encrypt("first"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	key1, err := database.GetSetting("fernet_key")
	if err != nil {
		t.Fatalf("key not persisted: %v", err)
	}

	if _, err := Encrypt("second"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	key2, _ := database.GetSetting("fernet_key")
	if key1 != key2 {
		t.Fatal("fernet key regenerated between calls")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	setupTestDB(t)
	if _, err := Encrypt("seed"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt("not-a-fernet-token"); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestMask(t *testing.T) {
	if got := Mask("supersecret"); got != "****cret" {
		t.Errorf("expected ****cret, got %q", got)
	}
	if got := Mask("ab"); got != "****" {
		t.Errorf("expected ****, got %q", got)
	}
	if got := Mask(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestGenerateStunnelCert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stunnel.pem")
	if err := GenerateStunnelCert(path); err != nil {
		t.Fatalf("generate: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// Combined file: key block first, then the certificate.
	block, rest := pem.Decode(data)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		t.Fatalf("expected RSA PRIVATE KEY first, got %v", block)
	}
	block, _ = pem.Decode(rest)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("expected CERTIFICATE second, got %v", block)
	}

	if _, err := tls.LoadX509KeyPair(path, path); err != nil {
		t.Fatalf("combined pem not loadable as key pair: %v", err)
	}
}
