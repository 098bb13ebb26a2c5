package database

import (
	"gorm.io/gorm"
)

// UserStore wraps the panel user persistence handed to the registration gate.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CountAdmins() (int64, error) {
	var count int64
	err := s.db.Model(&User{}).Where("is_admin = ?", true).Count(&count).Error
	return count, err
}

func (s *UserStore) Insert(user *User) error {
	return translate(s.db.Create(user).Error)
}
