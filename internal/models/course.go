package models

import (
	"time"
)

// Course is the catalog read model. The catalog itself is owned by another
// service; this service only needs TotalLessons for progress percentages.
type Course struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Title        string  `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description  *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	TotalLessons int     `json:"total_lessons" gorm:"default:0" validate:"min=0"`
	Published    bool    `json:"published" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Course) TableName() string {
	return "courses"
}
