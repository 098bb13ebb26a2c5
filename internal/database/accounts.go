package database

import (
	"gorm.io/gorm"
)

// AccountStore is the SSH account record store handed to the orchestrators.
// It is an explicit value rather than free functions so tests can substitute
// a fake behind the orchestrator's interface.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Insert(acct *SSHAccount) error {
	return translate(s.db.Create(acct).Error)
}

func (s *AccountStore) GetByUsername(username string) (*SSHAccount, error) {
	var acct SSHAccount
	if err := s.db.Where("username = ?", username).First(&acct).Error; err != nil {
		return nil, translate(err)
	}
	return &acct, nil
}

func (s *AccountStore) UpdateActive(username string, active bool) error {
	res := s.db.Model(&SSHAccount{}).Where("username = ?", username).Update("is_active", active)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AccountStore) Delete(username string) error {
	res := s.db.Where("username = ?", username).Delete(&SSHAccount{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns all accounts, newest first.
func (s *AccountStore) ListAll() ([]SSHAccount, error) {
	var accounts []SSHAccount
	if err := s.db.Order("created_at DESC").Find(&accounts).Error; err != nil {
		return nil, translate(err)
	}
	return accounts, nil
}

// ListExpired returns active accounts whose expiry date has passed.
func (s *AccountStore) ListExpired() ([]SSHAccount, error) {
	var accounts []SSHAccount
	err := s.db.Where("is_active = ? AND expiry_date < CURRENT_TIMESTAMP", true).Find(&accounts).Error
	if err != nil {
		return nil, translate(err)
	}
	return accounts, nil
}
