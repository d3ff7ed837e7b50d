// Package artifact persists trained artifact sets as zstd-compressed JSON
// bundles.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

// magic prefixes every bundle so foreign files fail fast.
var magic = []byte("EHAB")

type Store struct {
	storage ports.ObjectStorage
}

func NewStore(storage ports.ObjectStorage) *Store {
	return &Store{storage: storage}
}

func (s *Store) Save(ctx context.Context, path string, set *domain.ArtifactSet) error {
	op := "save artifact"
	if set.FormatVersion == 0 {
		set.FormatVersion = domain.ArtifactFormatVersion
	}
	if err := check(set); err != nil {
		return domain.WrapError(domain.ErrArtifact, op, err)
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return domain.WrapError(domain.ErrArtifact, op, err)
	}

	var buf bytes.Buffer
	buf.Write(magic)
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return domain.WrapError(domain.ErrArtifact, op, err)
	}
	if _, err := enc.Write(payload); err != nil {
		_ = enc.Close()
		return domain.WrapError(domain.ErrArtifact, op, err)
	}
	if err := enc.Close(); err != nil {
		return domain.WrapError(domain.ErrArtifact, op, err)
	}
	if err := s.storage.Save(ctx, path, &buf); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, path string) (*domain.ArtifactSet, error) {
	op := "load artifact"
	rc, err := s.storage.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rc.Close()

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(rc, head); err != nil || !bytes.Equal(head, magic) {
		return nil, domain.WrapError(domain.ErrArtifact, op, fmt.Errorf("%s is not an artifact bundle", path))
	}
	dec, err := zstd.NewReader(rc)
	if err != nil {
		return nil, domain.WrapError(domain.ErrArtifact, op, err)
	}
	defer dec.Close()

	var set domain.ArtifactSet
	if err := json.NewDecoder(dec).Decode(&set); err != nil {
		return nil, domain.WrapError(domain.ErrArtifact, op, err)
	}
	if set.FormatVersion != domain.ArtifactFormatVersion {
		return nil, domain.WrapError(domain.ErrArtifact, op,
			fmt.Errorf("bundle format %d, supported %d", set.FormatVersion, domain.ArtifactFormatVersion))
	}
	if err := check(&set); err != nil {
		return nil, domain.WrapError(domain.ErrArtifact, op, err)
	}
	return &set, nil
}

func check(set *domain.ArtifactSet) error {
	switch {
	case len(set.Schema) == 0:
		return fmt.Errorf("bundle has no feature schema")
	case len(set.Medians) != len(set.Schema):
		return fmt.Errorf("bundle has %d medians for %d columns", len(set.Medians), len(set.Schema))
	case len(set.Models) == 0:
		return fmt.Errorf("bundle has no models")
	case set.Threshold < 0 || set.Threshold > 1:
		return fmt.Errorf("bundle threshold %.4f outside [0, 1]", set.Threshold)
	}
	return nil
}
