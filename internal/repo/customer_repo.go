// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for customer
// accounts created by the deferred-registration path.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/momtazchem/go-verify-backend/internal/domain"
)

// GetCustomerByEmail fetches a customer by email, or ErrNotFound.
func GetCustomerByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Customer, error) {
	var c domain.Customer
	if err := db.WithContext(ctx).Where("email = ?", email).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer inserts a new customer row with a UUID primary key.
func CreateCustomer(ctx context.Context, db *gorm.DB, email, phone, firstName, lastName string) (*domain.Customer, error) {
	c := &domain.Customer{
		ID:        uuid.NewString(),
		Email:     email,
		Phone:     phone,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}
