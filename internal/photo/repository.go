package photo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no photo matches the lookup.
var ErrNotFound = errors.New("photo not found")

// Repository persists photo metadata rows.
type Repository interface {
	Insert(ctx context.Context, photo *Photo) error
	FindByCode(ctx context.Context, code string) (*Photo, error)
	List(ctx context.Context, limit int) ([]Photo, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (Repository, error) {
	if err := db.AutoMigrate(&Photo{}); err != nil {
		return nil, err
	}
	return &gormRepository{db: db}, nil
}

func (r *gormRepository) Insert(ctx context.Context, photo *Photo) error {
	return r.db.WithContext(ctx).Create(photo).Error
}

func (r *gormRepository) FindByCode(ctx context.Context, code string) (*Photo, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var photo Photo
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&photo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

func (r *gormRepository) List(ctx context.Context, limit int) ([]Photo, error) {
	if limit <= 0 {
		limit = 50
	}
	var photos []Photo
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	return photos, nil
}

// IsDuplicateCode reports whether err is the unique-index violation raised on
// a pickup-code collision.
func IsDuplicateCode(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
