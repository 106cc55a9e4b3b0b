package announcement

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
)

type Announcement struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	CourseID        null.String `json:"course_id"`
	TeacherName     null.String `json:"teacher_name"`
	TeacherImageURL null.String `json:"teacher_image_url"`
	IsActive        bool        `json:"is_active"`
	CreatedBy       null.String `json:"created_by"`
	CreatedAt       time.Time   `json:"created_at"` // UTC
	UpdatedAt       time.Time   `json:"updated_at"` // UTC

	// read-only, joined from the creator and the linked course
	AdminLastName     null.String `json:"admin_nom"`
	AdminFirstName    null.String `json:"admin_prenom"`
	CourseTitle       null.String `json:"course_title,omitempty"`
	CourseDescription null.String `json:"course_description,omitempty"`
	CourseImageURL    null.String `json:"course_image_url,omitempty"`
}

// NewAnnouncement contains information needed to publish a new Announcement.
type NewAnnouncement struct {
	Title       string `json:"title" form:"title" validate:"required,max=255"`
	Description string `json:"description" form:"description" validate:"required"`
	CourseID    string `json:"course_id" form:"course_id" validate:"omitempty,uuid"`
	TeacherName string `json:"teacher_name" form:"teacher_name" validate:"max=150"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.CourseID = core.CleanString(na.CourseID, true /* lower */)
	na.TeacherName = core.CleanString(na.TeacherName)
	return validate.Struct(na)
}

func (na NewAnnouncement) announcement(creatorID string, now time.Time) Announcement {
	return Announcement{
		Title:       na.Title,
		Description: na.Description,
		CourseID:    null.NewString(na.CourseID, na.CourseID != ""),
		TeacherName: null.NewString(na.TeacherName, na.TeacherName != ""),
		IsActive:    true,
		CreatedBy:   null.NewString(creatorID, creatorID != ""),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UpdateAnnouncement defines what information may be changed on an Announcement.
// nil fields keep their current value; an empty course_id or teacher_name clears it.
type UpdateAnnouncement struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,min=1"`
	CourseID    *string `json:"course_id"`
	TeacherName *string `json:"teacher_name" validate:"omitempty,max=150"`
	IsActive    *bool   `json:"is_active"`
}

func (ua *UpdateAnnouncement) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanStringPtr(ua.Title)
	ua.Description = core.CleanStringPtr(ua.Description)
	ua.CourseID = core.CleanStringPtr(ua.CourseID, true /* lower */)
	ua.TeacherName = core.CleanStringPtr(ua.TeacherName)
	if err := validate.Struct(ua); err != nil {
		return err
	}
	if ua.CourseID != nil && *ua.CourseID != "" && validate.Var(*ua.CourseID, "uuid") != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "course_id must be a valid UUID"})
	}
	return nil
}

func (ua UpdateAnnouncement) apply(ann *Announcement) {
	if ua.Title != nil {
		ann.Title = *ua.Title
	}
	if ua.Description != nil {
		ann.Description = *ua.Description
	}
	if ua.CourseID != nil {
		ann.CourseID = null.NewString(*ua.CourseID, *ua.CourseID != "")
	}
	if ua.TeacherName != nil {
		ann.TeacherName = null.NewString(*ua.TeacherName, *ua.TeacherName != "")
	}
	if ua.IsActive != nil {
		ann.IsActive = *ua.IsActive
	}
}
