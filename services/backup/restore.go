package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
)

// RestoreConfig configures extracting an archive back into a database file.
type RestoreConfig struct {
	Archive    string
	Output     string
	Identities []age.Identity
	// ExpectedSHA256, when set, must match the archive digest.
	ExpectedSHA256 string
}

// Restore verifies, decrypts and decompresses an archive written by Run.
func Restore(cfg RestoreConfig) error {
	if cfg.Archive == "" {
		return errors.New("archive path is required")
	}
	if cfg.Output == "" {
		return errors.New("output path is required")
	}

	if cfg.ExpectedSHA256 != "" {
		digest, err := fileSHA256(cfg.Archive)
		if err != nil {
			return err
		}
		if !strings.EqualFold(digest, cfg.ExpectedSHA256) {
			return fmt.Errorf("archive digest %s does not match manifest %s", digest, cfg.ExpectedSHA256)
		}
	}

	in, err := os.Open(cfg.Archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	var src io.Reader = in
	if strings.HasSuffix(cfg.Archive, ".age") {
		if len(cfg.Identities) == 0 {
			return errors.New("archive is encrypted and no identity was given")
		}
		src, err = age.Decrypt(in, cfg.Identities...)
		if err != nil {
			return fmt.Errorf("age decrypt: %w", err)
		}
	}

	zr, err := zstd.NewReader(src)
	if err != nil {
		return fmt.Errorf("open zstd stream: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, zr); err != nil {
		_ = out.Close()
		_ = os.Remove(cfg.Output)
		return fmt.Errorf("decompress archive: %w", err)
	}
	return out.Close()
}

// ReadIdentities parses an age identity file.
func ReadIdentities(path string) ([]age.Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return age.ParseIdentities(f)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
