package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

type Store struct {
	storage  ports.ObjectStorage
	validate *validator.Validate
}

func NewStore(storage ports.ObjectStorage) *Store {
	return &Store{
		storage:  storage,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Store) Load(ctx context.Context, path string, partition domain.Partition) (*domain.Corpus, error) {
	rc, err := s.storage.Open(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.WrapError(domain.ErrNotFound, fmt.Sprintf("load %s corpus", partition), err)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s corpus: %w", partition, err)
	}
	defer rc.Close()
	return Decode(rc, partition, s.validate)
}

// Save encodes the whole corpus before handing it to storage so a failed
// encode never replaces an existing file.
func (s *Store) Save(ctx context.Context, path string, corpus *domain.Corpus) error {
	var buf bytes.Buffer
	if err := Encode(&buf, corpus); err != nil {
		return fmt.Errorf("encode %s corpus: %w", corpus.Partition, err)
	}
	if err := s.storage.Save(ctx, path, &buf); err != nil {
		return fmt.Errorf("save %s corpus: %w", corpus.Partition, err)
	}
	return nil
}
