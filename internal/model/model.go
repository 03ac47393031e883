// Package model содержит доменные сущности кафетерия льгот.
package model

import "time"

// UserRole описывает роль пользователя в системе.
type UserRole string

const (
	RoleEmployee UserRole = "employee"
	RoleHR       UserRole = "hr"
	RoleAdmin    UserRole = "admin"
)

// Valid сообщает, является ли значение известной ролью.
func (r UserRole) Valid() bool {
	switch r {
	case RoleEmployee, RoleHR, RoleAdmin:
		return true
	}
	return false
}

// User представляет сотрудника — участника коинового леджера.
type User struct {
	ID            int64
	Email         string
	Firstname     string
	Lastname      string
	PasswordHash  []byte
	Role          UserRole
	Coins         int64
	LegalEntityID *int64
	IsAdapted     bool
	HiredAt       time.Time
	CreatedAt     time.Time
}

// Level возвращает уровень сотрудника на момент now: один уровень за каждые
// 30 полных дней с даты найма.
func (u *User) Level(now time.Time) int64 {
	days := int64(now.Sub(u.HiredAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days / 30
}

// Benefit представляет позицию каталога льгот.
// Amount == nil означает неограниченный остаток.
type Benefit struct {
	ID                 int64
	Name               string
	Description        string
	CoinsCost          int64
	MinLevelCost       int64
	AdaptationRequired bool
	Amount             *int64
	ImageURL           string
	CreatedAt          time.Time
}

// RequestStatus описывает статус заявки на льготу.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusDeclined  RequestStatus = "declined"
	StatusProcessed RequestStatus = "processed"
	StatusCompleted RequestStatus = "completed"
)

// Valid сообщает, является ли значение известным статусом.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusProcessed, StatusCompleted:
		return true
	}
	return false
}

// Terminal сообщает, закрыта ли заявка для дальнейших изменений.
// Только approved и declined терминальны: processed и completed присутствуют
// в данных, но в ресурсных переходах не участвуют.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined
}

// HoldsReservation сообщает, удерживает ли заявка в этом статусе
// зарезервированные ресурсы (коины пользователя и остаток льготы).
func (s RequestStatus) HoldsReservation() bool {
	return s == StatusPending || s == StatusApproved
}

// BenefitRequest представляет заявку сотрудника на льготу.
type BenefitRequest struct {
	ID          int64
	BenefitID   int64
	UserID      int64
	PerformerID *int64
	Status      RequestStatus
	Content     string
	Comment     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Actor описывает аутентифицированного пользователя, выполняющего операцию.
// Заполняется middleware аутентификации и не перепроверяется сервисом.
type Actor struct {
	ID            int64
	Role          UserRole
	LegalEntityID *int64
}

// RequestUpdate содержит изменяемые поля заявки. Nil-поле не изменяется.
type RequestUpdate struct {
	Status  *RequestStatus
	Content *string
	Comment *string
}
