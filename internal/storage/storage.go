// Package storage holds the offline demo registry: users who registered
// through the simulated OTP path while the API was out of reach. It backs
// the demo login provider only and is never consulted for real sessions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tajious/medsync/internal/config"
	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/roles"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

type ListOptions struct {
	Page     int
	PageSize int
	Search   string
	Role     models.Role
}

func (o ListOptions) offset() int {
	return (o.Page - 1) * o.PageSize
}

type Registry interface {
	// Register assigns the next identifier for u.Role and stores u.
	Register(ctx context.Context, u *models.RegisteredUser) error
	// FindByIdentifier matches the exact code, or the email when identifier
	// contains "@".
	FindByIdentifier(ctx context.Context, identifier string) (*models.RegisteredUser, error)
	List(ctx context.Context, opts ListOptions) ([]models.RegisteredUser, int64, error)
}

type GormRegistry struct {
	db *gorm.DB
}

type InMemoryRegistry struct {
	mu    sync.RWMutex
	users []*models.RegisteredUser
}

// Open picks the gorm dialector from cfg.Driver ("sqlite" or "postgres").
func Open(cfg config.DatabaseConfig) (*GormRegistry, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dialector = postgres.Open(BuildDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported registry driver %q", cfg.Driver)
	}
	return NewGormRegistry(dialector)
}

func NewGormRegistry(dialector gorm.Dialector) (*GormRegistry, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.RegisteredUser{}); err != nil {
		return nil, err
	}

	return &GormRegistry{db: db}, nil
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{}
}

func (s *GormRegistry) Register(ctx context.Context, u *models.RegisteredUser) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var codes []string
		if err := tx.Model(&models.RegisteredUser{}).Where("role = ?", u.Role).Pluck("code", &codes).Error; err != nil {
			return err
		}
		code, err := roles.NextIdentifier(u.Role, codes)
		if err != nil {
			return err
		}
		u.Code = code
		return tx.Create(u).Error
	})
}

func (s *GormRegistry) FindByIdentifier(ctx context.Context, identifier string) (*models.RegisteredUser, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrUserNotFound
	}

	column := "code"
	if strings.Contains(identifier, "@") {
		column = "email"
	}

	var user models.RegisteredUser
	if err := s.db.WithContext(ctx).First(&user, column+" = ?", identifier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *GormRegistry) List(ctx context.Context, opts ListOptions) ([]models.RegisteredUser, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.RegisteredUser{})

	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		query = query.Where("code LIKE ? OR full_name LIKE ? OR email LIKE ?", pattern, pattern, pattern)
	}
	if opts.Role.Known() {
		query = query.Where("role = ?", opts.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.RegisteredUser
	if err := query.Order("created_at desc, id desc").Offset(opts.offset()).Limit(opts.PageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *GormRegistry) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *InMemoryRegistry) Register(ctx context.Context, u *models.RegisteredUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var codes []string
	for _, existing := range s.users {
		if existing.Role == u.Role {
			codes = append(codes, existing.Code)
		}
	}
	code, err := roles.NextIdentifier(u.Role, codes)
	if err != nil {
		return err
	}

	now := time.Now()
	u.Code = code
	u.ID = uint(len(s.users) + 1)
	u.CreatedAt = now
	u.UpdatedAt = now
	stored := *u
	s.users = append(s.users, &stored)
	return nil
}

func (s *InMemoryRegistry) FindByIdentifier(ctx context.Context, identifier string) (*models.RegisteredUser, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrUserNotFound
	}
	byEmail := strings.Contains(identifier, "@")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if (byEmail && u.Email == identifier) || (!byEmail && u.Code == identifier) {
			found := *u
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *InMemoryRegistry) List(ctx context.Context, opts ListOptions) ([]models.RegisteredUser, int64, error) {
	s.mu.RLock()
	var matched []models.RegisteredUser
	for _, u := range s.users {
		if opts.Role.Known() && u.Role != opts.Role {
			continue
		}
		if opts.Search != "" && !strings.Contains(u.Code, opts.Search) &&
			!strings.Contains(u.FullName, opts.Search) && !strings.Contains(u.Email, opts.Search) {
			continue
		}
		matched = append(matched, *u)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	offset := opts.offset()
	if offset < 0 || offset >= len(matched) {
		return []models.RegisteredUser{}, total, nil
	}
	end := offset + opts.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
}
