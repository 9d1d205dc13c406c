package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UserRole определяет роль пользователя. Совпадает с ENUM 'user_role' в БД.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleEditor UserRole = "editor"
	RoleViewer UserRole = "viewer"
)

// User — учетная запись платформы. Аутентификация живет снаружи ядра,
// таблица нужна для initiated_by и аудита.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Role      UserRole  `json:"role" db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// WeeklyScheduleEntry — слот еженедельного расписания публикаций.
type WeeklyScheduleEntry struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	StoryID   *uuid.UUID `json:"storyId,omitempty" db:"story_id"`
	Weekday   int        `json:"weekday" db:"weekday"` // 0=Sunday .. 6=Saturday
	Theme     string     `json:"theme" db:"theme"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

// AuditLogEntry — запись журнала действий над историями.
type AuditLogEntry struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    *uuid.UUID      `json:"userId,omitempty" db:"user_id"`
	Action    string          `json:"action" db:"action"`
	EntityID  *uuid.UUID      `json:"entityId,omitempty" db:"entity_id"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}
