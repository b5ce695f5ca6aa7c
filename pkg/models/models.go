// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Meta carries the store-managed fields every entity has.
type Meta struct {
	ID        string     `json:"_id,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Building is a property with rooms.
type Building struct {
	Meta
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Floors  int    `json:"floors,omitempty"`
	Note    string `json:"note,omitempty"`
}

type RoomStatus string

const (
	RoomVacant      RoomStatus = "vacant"
	RoomOccupied    RoomStatus = "occupied"
	RoomMaintenance RoomStatus = "maintenance"
)

// Room is a rentable unit of a building. Rent is in the smallest currency unit.
type Room struct {
	Meta
	BuildingID string     `json:"buildingId"`
	Number     string     `json:"roomNumber"`
	Floor      int        `json:"floor,omitempty"`
	Area       float64    `json:"area,omitempty"`
	Rent       int64      `json:"rent"`
	Status     RoomStatus `json:"status"`
	Amenities  []string   `json:"amenities,omitempty"`
}

// Tenant is a person renting a room.
type Tenant struct {
	Meta
	FullName string `json:"fullName"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	IDNumber string `json:"idNumber,omitempty"`
	RoomID   string `json:"roomId,omitempty"`
}

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractEnded     ContractStatus = "ended"
	ContractCancelled ContractStatus = "cancelled"
)

// DateLayout is the layout of contract and invoice dates.
const DateLayout = "2006-01-02"

// Contract binds tenants to a room for a period.
type Contract struct {
	Meta
	RoomID    string         `json:"roomId"`
	TenantIDs []string       `json:"tenantIds"`
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate,omitempty"`
	Rent      int64          `json:"rent"`
	Deposit   int64          `json:"deposit,omitempty"`
	Status    ContractStatus `json:"status"`
}

// ActiveOn reports whether the contract is active and day lies within its dates.
// An empty end date is open-ended.
func (c Contract) ActiveOn(day time.Time) bool {
	if c.Status != ContractActive {
		return false
	}

	d := day.Format(DateLayout)
	if c.StartDate != "" && d < c.StartDate {
		return false
	}

	return c.EndDate == "" || d <= c.EndDate
}

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity,omitempty"`
	UnitPrice   int64  `json:"unitPrice,omitempty"`
	Amount      int64  `json:"amount"`
}

// Invoice bills a contract for one period ("2006-01").
type Invoice struct {
	Meta
	ContractID string        `json:"contractId"`
	RoomID     string        `json:"roomId,omitempty"`
	Period     string        `json:"period"`
	Items      []InvoiceItem `json:"items"`
	Total      int64         `json:"total"`
	DueDate    string        `json:"dueDate,omitempty"`
	Status     InvoiceStatus `json:"status"`
	PaidAt     *time.Time    `json:"paidAt,omitempty"`
}

// ComputeTotal fills item amounts from quantity and unit price where unset and
// sets Total to their sum.
func (inv *Invoice) ComputeTotal() int64 {
	var total int64

	for i := range inv.Items {
		item := &inv.Items[i]
		if item.Amount == 0 && item.Quantity != 0 {
			item.Amount = item.Quantity * item.UnitPrice
		}

		total += item.Amount
	}

	inv.Total = total

	return total
}

// MarkPaid sets the invoice paid at t.
func (inv *Invoice) MarkPaid(t time.Time) {
	paid := t.UTC()
	inv.PaidAt = &paid
	inv.Status = InvoicePaid
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// ErrWrongPassword is returned by User.CheckPassword on mismatch.
var ErrWrongPassword = errors.New("wrong password")

// User is a staff account. Only the bcrypt hash of the password is stored.
type User struct {
	Meta
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Role         Role   `json:"role"`
}

// SetPassword stores the bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u.PasswordHash = string(hash)

	return nil
}

// CheckPassword compares password with the stored hash.
func (u *User) CheckPassword(password string) error {
	if u.PasswordHash == "" {
		return ErrWrongPassword
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrWrongPassword
		}

		return err
	}

	return nil
}
