package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
)

// File types
const (
	FileTypePDF   = "pdf"
	FileTypeVideo = "video"
)

type Course struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Content     string      `json:"content"`
	ImageURL    null.String `json:"image_url"`
	Category    null.String `json:"category"`
	Level       null.String `json:"level"`
	Duration    null.String `json:"duration"`
	FileURL     null.String `json:"file_url"`  // set together with FileType
	FileType    null.String `json:"file_type"` // pdf | video
	CreatedBy   null.String `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC

	// creator's names, read-only
	CreatorLastName  null.String `json:"nom"`
	CreatorFirstName null.String `json:"prenom"`
}

func (c *Course) setFile(url, fileType string) {
	c.FileURL = null.StringFrom(url)
	c.FileType = null.StringFrom(fileType)
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" form:"title" validate:"required,max=255"`
	Description string `json:"description" form:"description" validate:"required"`
	Content     string `json:"content" form:"content"`
	ImageURL    string `json:"image_url" form:"image_url" validate:"max=255"`
	Category    string `json:"category" form:"category" validate:"max=100"`
	Level       string `json:"level" form:"level" validate:"max=50"`
	Duration    string `json:"duration" form:"duration" validate:"max=50"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.ImageURL = core.CleanString(nc.ImageURL)
	nc.Category = core.CleanString(nc.Category)
	nc.Level = core.CleanString(nc.Level)
	nc.Duration = core.CleanString(nc.Duration)
	return validate.Struct(nc)
}

func (nc NewCourse) course(creatorID string, now time.Time) Course {
	return Course{
		Title:       nc.Title,
		Description: nc.Description,
		Content:     nc.Content,
		ImageURL:    null.NewString(nc.ImageURL, nc.ImageURL != ""),
		Category:    null.NewString(nc.Category, nc.Category != ""),
		Level:       null.NewString(nc.Level, nc.Level != ""),
		Duration:    null.NewString(nc.Duration, nc.Duration != ""),
		CreatedBy:   null.NewString(creatorID, creatorID != ""),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UpdateCourse defines what information may be changed on a Course.
// nil fields keep their current value; an empty optional field clears it.
type UpdateCourse struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,min=1"`
	Content     *string `json:"content"`
	ImageURL    *string `json:"image_url" validate:"omitempty,max=255"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Level       *string `json:"level" validate:"omitempty,max=50"`
	Duration    *string `json:"duration" validate:"omitempty,max=50"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanStringPtr(uc.Title)
	uc.Description = core.CleanStringPtr(uc.Description)
	uc.ImageURL = core.CleanStringPtr(uc.ImageURL)
	uc.Category = core.CleanStringPtr(uc.Category)
	uc.Level = core.CleanStringPtr(uc.Level)
	uc.Duration = core.CleanStringPtr(uc.Duration)
	return validate.Struct(uc)
}

func (uc UpdateCourse) apply(crs *Course) {
	if uc.Title != nil {
		crs.Title = *uc.Title
	}
	if uc.Description != nil {
		crs.Description = *uc.Description
	}
	if uc.Content != nil {
		crs.Content = *uc.Content
	}
	setNull := func(dst *null.String, src *string) {
		if src != nil {
			*dst = null.NewString(*src, *src != "")
		}
	}
	setNull(&crs.ImageURL, uc.ImageURL)
	setNull(&crs.Category, uc.Category)
	setNull(&crs.Level, uc.Level)
	setNull(&crs.Duration, uc.Duration)
}

type QueryFilter struct {
	Category string `query:"category"`
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category)
}

// Ordering allow-list for course listings.
var OrderingAllowList = core.OrderingAllowList{
	Columns: map[string]string{
		"title":      "title",
		"category":   "category",
		"level":      "level",
		"created_at": "created_at",
	},
	Default: core.DBOrdering{Field: "created_at", Ascending: false},
}
