// Package backup writes compressed, optionally encrypted snapshots of the
// inventory database.
package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"inventoryd/services/inventory"
)

const (
	compressionZstd = "zstd"
	snapshotName    = "inventory.db"
)

// Source produces consistent database copies.
type Source interface {
	Snapshot(ctx context.Context, dest string) error
	Stats(ctx context.Context) (inventory.Stats, error)
}

// Uploader stores finished archives remotely.
type Uploader interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
}

// Config configures one backup run.
type Config struct {
	OutputDir  string
	Recipients []string
	Bucket     string
	Prefix     string
	Uploader   Uploader
	Now        func() time.Time
	Stdout     io.Writer
}

// Run snapshots src, compresses the copy with zstd, encrypts it to every
// recipient when any are given, and writes the archive plus a YAML manifest
// to cfg.OutputDir. With an Uploader and Bucket both files are uploaded too.
func Run(ctx context.Context, src Source, cfg Config) (*Manifest, error) {
	if src == nil {
		return nil, errors.New("backup source is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if cfg.Uploader != nil && cfg.Bucket == "" {
		return nil, errors.New("bucket is required for upload")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}

	recipients, err := parseRecipients(cfg.Recipients)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	stats, err := src.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "inventory-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshotPath := filepath.Join(tmpDir, snapshotName)
	if err := src.Snapshot(ctx, snapshotPath); err != nil {
		return nil, err
	}

	createdAt := cfg.Now().UTC().Truncate(time.Second)
	name := archiveName(createdAt, len(recipients) > 0)
	archivePath := filepath.Join(cfg.OutputDir, name)

	size, digest, err := writeArchive(snapshotPath, archivePath, recipients)
	if err != nil {
		_ = os.Remove(archivePath)
		return nil, err
	}

	manifest := &Manifest{
		Version:     manifestVersion,
		ID:          uuid.NewString(),
		CreatedAt:   createdAt,
		File:        name,
		Size:        size,
		SHA256:      digest,
		Compression: compressionZstd,
		Encrypted:   len(recipients) > 0,
		Recipients:  cfg.Recipients,
		Laptops:     stats.Laptops,
		Checkins:    stats.Checkins,
	}
	manifestBytes, err := manifest.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestName := name + ".manifest.yaml"
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, manifestName), manifestBytes, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	fmt.Fprintf(cfg.Stdout, "backup %s written to %s (%d bytes, sha256 %s)\n", manifest.ID, archivePath, size, digest)

	if cfg.Uploader != nil {
		if err := upload(ctx, cfg, archivePath, name, size, digest); err != nil {
			return nil, err
		}
		sum := sha256.Sum256(manifestBytes)
		key := path.Join(cfg.Prefix, manifestName)
		if err := cfg.Uploader.PutObject(ctx, cfg.Bucket, key, bytes.NewReader(manifestBytes), int64(len(manifestBytes)), hex.EncodeToString(sum[:])); err != nil {
			return nil, fmt.Errorf("upload manifest: %w", err)
		}
		fmt.Fprintf(cfg.Stdout, "uploaded to s3://%s/%s\n", cfg.Bucket, path.Join(cfg.Prefix, name))
	}

	return manifest, nil
}

func archiveName(at time.Time, encrypted bool) string {
	name := "inventory-" + at.Format("20060102T150405Z") + ".db.zst"
	if encrypted {
		name += ".age"
	}
	return name
}

func parseRecipients(raw []string) ([]age.Recipient, error) {
	out := make([]age.Recipient, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		rec, err := age.ParseX25519Recipient(r)
		if err != nil {
			return nil, fmt.Errorf("parse age recipient %q: %w", r, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// writeArchive streams src through zstd and, with recipients, age into dest.
// It returns the archive size and hex sha256.
func writeArchive(src, dest string, recipients []age.Recipient) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", fmt.Errorf("open snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, "", fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	hasher := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(out, hasher)}

	var sink io.Writer = counter
	var encWriter io.WriteCloser
	if len(recipients) > 0 {
		encWriter, err = age.Encrypt(counter, recipients...)
		if err != nil {
			return 0, "", fmt.Errorf("age encrypt: %w", err)
		}
		sink = encWriter
	}

	zw, err := zstd.NewWriter(sink)
	if err != nil {
		return 0, "", fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		return 0, "", fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, "", fmt.Errorf("finalise zstd: %w", err)
	}
	if encWriter != nil {
		if err := encWriter.Close(); err != nil {
			return 0, "", fmt.Errorf("finalise age: %w", err)
		}
	}
	if err := out.Sync(); err != nil {
		return 0, "", fmt.Errorf("sync archive: %w", err)
	}

	return counter.n, hex.EncodeToString(hasher.Sum(nil)), nil
}

func upload(ctx context.Context, cfg Config, archivePath, name string, size int64, digest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	key := path.Join(cfg.Prefix, name)
	if err := cfg.Uploader.PutObject(ctx, cfg.Bucket, key, f, size, digest); err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
