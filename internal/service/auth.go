package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/validation"
)

// bcryptCost переопределяется в тестах.
var bcryptCost = bcrypt.DefaultCost

// Registration содержит данные для регистрации пользователя.
type Registration struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
	ImageURL string
}

// Register регистрирует нового пользователя. Роль по умолчанию: student.
func (s *Service) Register(ctx context.Context, r Registration) (*model.User, error) {
	email := validation.NormalizeEmail(r.Email)
	switch {
	case r.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case !validation.IsValidEmail(email):
		return nil, fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	case !validPassword(r.Password):
		return nil, fmt.Errorf("%w: password must be %d to %d characters", ErrInvalidInput, validation.MinPasswordLength, validation.MaxPasswordLength)
	}

	role := r.Role
	if role == "" {
		role = model.RoleStudent
	}
	if role != model.RoleStudent && role != model.RoleEducator {
		return nil, fmt.Errorf("%w: role %q cannot be self-assigned", ErrInvalidInput, role)
	}

	hash, err := hashPassword(r.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Name:         r.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		ImageURL:     r.ImageURL,
	}
	id, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	u.ID = id
	return u, nil
}

// Login проверяет email и пароль пользователя.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	u, err := s.repo.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !checkPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Profile возвращает пользователя вместе с курсами, на которые он записан.
func (s *Service) Profile(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile меняет имя и аватар пользователя. Пустые значения не меняют поле.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, name, imageURL string) (*model.User, error) {
	if err := s.repo.UpdateUserProfile(ctx, userID, name, imageURL); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, userID)
}

// ChangePassword меняет пароль после проверки текущего.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if current == "" || !validPassword(next) {
		return fmt.Errorf("%w: new password must be %d to %d characters", ErrInvalidInput, validation.MinPasswordLength, validation.MaxPasswordLength)
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !checkPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}

	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.repo.UpdateUserPassword(ctx, userID, hash)
}

// BecomeEducator переводит пользователя в роль преподавателя.
// Администратор сохраняет свою роль.
func (s *Service) BecomeEducator(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == model.RoleStudent {
		if err := s.repo.UpdateUserRole(ctx, userID, model.RoleEducator); err != nil {
			return nil, err
		}
		u.Role = model.RoleEducator
	}
	return u, nil
}

func validPassword(p string) bool {
	return len(p) >= validation.MinPasswordLength && len(p) <= validation.MaxPasswordLength
}

func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func checkPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
