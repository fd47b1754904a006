package photo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/cache"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/clock"
)

const (
	codeInsertAttempts = 5
	codeCacheTTL       = 5 * time.Minute
)

// SaveRequest carries one captured image into the store.
type SaveRequest struct {
	Bytes         []byte
	TriggerSource string
	Countdown     time.Duration
}

// Service stores captured photos: bytes on disk, metadata in the database,
// with a TTL cache in front of pickup-code lookups.
type Service struct {
	repo  Repository
	genID *snowflake.Node
	clk   clock.Clock
	log   *zap.Logger
	dir   string
	cache cache.Cache[string, Photo]
}

func NewService(repo Repository, genID *snowflake.Node, clk clock.Clock, log *zap.Logger, dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating photo directory: %w", err)
	}
	return &Service{
		repo:  repo,
		genID: genID,
		clk:   clk,
		log:   log.Named("photo"),
		dir:   dir,
		cache: cache.NewTTLCache[string, Photo](),
	}, nil
}

// Save persists one capture and returns the stored photo. Pickup-code
// collisions are retried with a fresh code.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*Photo, error) {
	if len(req.Bytes) == 0 {
		return nil, fmt.Errorf("refusing to store an empty photo")
	}

	var lastErr error
	for attempt := 0; attempt < codeInsertAttempts; attempt++ {
		code, err := newCode()
		if err != nil {
			return nil, err
		}

		filename := code + ".jpg"
		photo := &Photo{
			ID:          s.genID.Generate().Int64(),
			Code:        code,
			Filename:    filename,
			SizeBytes:   int64(len(req.Bytes)),
			ContentType: "image/jpeg",
			Metadata: datatypes.JSONMap{
				"trigger_source": req.TriggerSource,
				"countdown_ms":   req.Countdown.Milliseconds(),
			},
			CreatedAt: s.clk.Now().UTC(),
		}

		if err := os.WriteFile(s.Path(photo), req.Bytes, 0o644); err != nil {
			return nil, fmt.Errorf("writing photo file: %w", err)
		}

		if err := s.repo.Insert(ctx, photo); err != nil {
			_ = os.Remove(s.Path(photo))
			if IsDuplicateCode(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		s.cache.Set(code, *photo, codeCacheTTL)
		s.log.Info("photo stored",
			zap.String("code", code),
			zap.Int64("bytes", photo.SizeBytes),
			zap.String("trigger_source", req.TriggerSource))
		return photo, nil
	}
	return nil, fmt.Errorf("exhausted pickup-code attempts: %w", lastErr)
}

// GetByCode looks a photo up by its pickup code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Photo, error) {
	if cached, ok := s.cache.Get(code); ok {
		return &cached, nil
	}
	photo, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cache.Set(photo.Code, *photo, codeCacheTTL)
	return photo, nil
}

// List returns the newest photos, most recent first.
func (s *Service) List(ctx context.Context, limit int) ([]Photo, error) {
	return s.repo.List(ctx, limit)
}

// Path is the on-disk location of a photo's bytes.
func (s *Service) Path(photo *Photo) string {
	return filepath.Join(s.dir, photo.Filename)
}
