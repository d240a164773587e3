package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pbaille/nutriscan/internal/domain"
	"github.com/pbaille/nutriscan/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// CredentialStore registers and checks users
type CredentialStore interface {
	Create(username, password string) (*domain.User, error)
	Verify(username, password string) (*domain.User, error)
}

// UserRepo is the persistence the Service needs
type UserRepo interface {
	CreateUser(username, passwordHash string) (*domain.User, error)
	GetUser(username string) (*domain.User, error)
}

// Service is a CredentialStore that keeps bcrypt hashes in a UserRepo
type Service struct {
	repo    UserRepo
	cost    int
	compare func(hash, password []byte) error

	dummyOnce sync.Once
	dummy     []byte
}

// New creates a Service with bcrypt's default cost
func New(repo UserRepo) *Service {
	return NewWithCost(repo, bcrypt.DefaultCost)
}

// NewWithCost creates a Service with an explicit bcrypt cost
func NewWithCost(repo UserRepo, cost int) *Service {
	return &Service{repo: repo, cost: cost, compare: bcrypt.CompareHashAndPassword}
}

// Create registers a user. The store's unique constraint decides races.
func (s *Service) Create(username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repo.CreateUser(username, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Verify checks a username and password pair
func (s *Service) Verify(username, password string) (*domain.User, error) {
	u, err := s.repo.GetUser(strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		// same bcrypt work as a wrong password, so timing does not reveal usernames
		s.compare(s.dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.compare([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummy, _ = bcrypt.GenerateFromPassword([]byte("nutriscan"), s.cost)
	})
	return s.dummy
}
