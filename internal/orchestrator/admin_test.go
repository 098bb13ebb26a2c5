package orchestrator

import (
	"testing"

	"github.com/tunnelpanel/tunnelpanel/internal/auth"
	"github.com/tunnelpanel/tunnelpanel/internal/database"
)

type fakeUserStore struct {
	users     []*database.User
	insertErr error
	countErr  error
}

func (f *fakeUserStore) CountAdmins() (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, u := range f.users {
		if u.IsAdmin {
			n++
		}
	}
	return n, nil
}

func (f *fakeUserStore) Insert(user *database.User) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return database.ErrDuplicate
		}
	}
	f.users = append(f.users, user)
	return nil
}

func TestRegisterFirstAdmin(t *testing.T) {
	store := &fakeUserStore{}
	gate := NewAdministratorGate(store)

	user, opErr := gate.Register(RegisterAdminInput{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "hunter22",
	})
	if opErr != nil {
		t.Fatalf("register: %v", opErr)
	}
	if !user.IsAdmin {
		t.Error("registered user should be an admin")
	}
	if user.PasswordHash == "hunter22" || user.PasswordHash == "" {
		t.Error("password should be stored hashed")
	}
	if !auth.CheckPassword("hunter22", user.PasswordHash) {
		t.Error("stored hash should verify the original password")
	}
}

func TestRegisterClosedAfterFirstAdmin(t *testing.T) {
	store := &fakeUserStore{users: []*database.User{{Username: "admin", IsAdmin: true}}}
	gate := NewAdministratorGate(store)

	_, opErr := gate.Register(RegisterAdminInput{
		Username: "second",
		Email:    "second@example.com",
		Password: "pw",
	})
	if opErr == nil || opErr.Kind != KindAlreadyInitialized {
		t.Fatalf("want already_initialized, got %v", opErr)
	}
}

func TestRegisterValidation(t *testing.T) {
	gate := NewAdministratorGate(&fakeUserStore{})

	cases := []RegisterAdminInput{
		{},
		{Username: "admin"},
		{Username: "admin", Email: "a@b.c"},
		{Username: "  ", Email: "a@b.c", Password: "pw"},
	}
	for i, in := range cases {
		if _, opErr := gate.Register(in); opErr == nil || opErr.Kind != KindInvalidInput {
			t.Errorf("case %d: want invalid_input, got %v", i, opErr)
		}
	}
}

func TestRegisterDuplicateIdentifier(t *testing.T) {
	store := &fakeUserStore{insertErr: database.ErrDuplicate}
	gate := NewAdministratorGate(store)

	_, opErr := gate.Register(RegisterAdminInput{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "pw",
	})
	if opErr == nil || opErr.Kind != KindDuplicateIdentifier {
		t.Fatalf("want duplicate_identifier, got %v", opErr)
	}
}
