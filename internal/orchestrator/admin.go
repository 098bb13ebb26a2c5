package orchestrator

import (
	"errors"
	"log"
	"strings"

	"github.com/tunnelpanel/tunnelpanel/internal/auth"
	"github.com/tunnelpanel/tunnelpanel/internal/database"
)

// UserStore is the panel user persistence the registration gate depends on.
type UserStore interface {
	CountAdmins() (int64, error)
	Insert(user *database.User) error
}

// AdministratorGate admits exactly one admin registration. Once any admin
// row exists, registration is closed for good.
type AdministratorGate struct {
	store UserStore
}

func NewAdministratorGate(store UserStore) *AdministratorGate {
	return &AdministratorGate{store: store}
}

type RegisterAdminInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterAdminInput) validate() *OpError {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return opErr(KindInvalidInput, "Username, email and password are required.")
	}
	return nil
}

func (g *AdministratorGate) Register(in RegisterAdminInput) (*database.User, *OpError) {
	count, err := g.store.CountAdmins()
	if err != nil {
		log.Printf("gate: count admins: %v", err)
		return nil, opErr(KindRecordInsertFailed, "Failed to check registration state.")
	}
	if count > 0 {
		return nil, opErr(KindAlreadyInitialized, "Admin already registered.")
	}

	if verr := in.validate(); verr != nil {
		return nil, verr
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		log.Printf("gate: hash password: %v", err)
		return nil, opErr(KindRecordInsertFailed, "Failed to register admin.")
	}

	user := &database.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := g.store.Insert(user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, opErr(KindDuplicateIdentifier, "Username or email already in use.")
		}
		log.Printf("gate: insert admin: %v", err)
		return nil, opErr(KindRecordInsertFailed, "Failed to register admin.")
	}
	return user, nil
}
