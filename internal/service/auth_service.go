package service

import (
	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"english_edu_backend/internal/repository"
	"english_edu_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService authenticates identities. Students log in with their issued
// student ID, staff with their email.
type AuthService struct {
	IdentityRepo *repository.IdentityRepository
	Cfg          *config.Config
}

func NewAuthService(identityRepo *repository.IdentityRepository, cfg *config.Config) *AuthService {
	return &AuthService{IdentityRepo: identityRepo, Cfg: cfg}
}

// LoginResult carries the signed token and the principal.
type LoginResult struct {
	Token    string          `json:"token"`
	Identity *model.Identity `json:"identity"`
}

func (s *AuthService) Login(username, password string) (*LoginResult, error) {
	identity, err := s.IdentityRepo.FindByUsername(username)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.Forbiddenf("invalid credentials")
		}
		return nil, err
	}
	if !identity.Active {
		return nil, util.Forbiddenf("account is deactivated")
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.Password), []byte(password)) != nil {
		return nil, util.Forbiddenf("invalid credentials")
	}

	token, err := util.GenerateJWT(identity, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	if err := s.IdentityRepo.UpdateLastSeen(identity.ID); err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Identity: identity}, nil
}

func (s *AuthService) GetCurrentUser(userID uint) (*model.Identity, error) {
	identity, err := s.IdentityRepo.FindByID(userID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.NotFoundf("identity %d", userID)
	}
	return identity, err
}

func (s *AuthService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return util.Invalidf("password must be at least 8 characters")
	}
	identity, err := s.IdentityRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.Password), []byte(oldPassword)) != nil {
		return util.Forbiddenf("wrong password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	identity.Password = string(hash)
	return s.IdentityRepo.Update(identity)
}
