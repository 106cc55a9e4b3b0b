// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/announcement"
	"github.com/trezcool/elimu/core/contact"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
)

const SecretKey = "test-secret-key"

// NewConfig returns a TEST configuration that stores uploads in uploadsDir.
func NewConfig(uploadsDir string) *core.Config {
	return &core.Config{
		AppName:                   "Elimu",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 SecretKey,
		DefaultFromEmail:          "noreply@elimu.test",
		DefaultFromName:           "Elimu",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
			DisableReqLogs:     true,
		},
		Database: core.DatabaseConfig{Engine: "memory"},
		Uploads: core.UploadsConfig{
			Backend:   "local",
			Dir:       uploadsDir,
			URLPrefix: "/uploads",
			MaxBytes:  1 << 20,
		},
		RateLimit: core.RateLimitConfig{
			PasswordResetMax:    5,
			PasswordResetWindow: time.Minute,
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	lastName, firstName, email, pwd, role string,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		LastName:  lastName,
		FirstName: firstName,
		Email:     email,
		Country:   "Maroc",
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	title, category, creatorID string,
	createdAt ...time.Time,
) course.Course {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:       title,
		Description: "About " + title,
		Content:     "",
		Category:    null.NewString(category, category != ""),
		CreatedBy:   null.NewString(creatorID, creatorID != ""),
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return crs
}

func CreateAnnouncement(
	t *testing.T,
	repo announcement.Repository,
	title, courseID, creatorID string,
	createdAt ...time.Time,
) announcement.Announcement {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	ann, err := repo.CreateAnnouncement(context.Background(), announcement.Announcement{
		Title:       title,
		Description: "About " + title,
		CourseID:    null.NewString(courseID, courseID != ""),
		IsActive:    true,
		CreatedBy:   null.NewString(creatorID, creatorID != ""),
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateAnnouncement(): %v", err)
	}
	return ann
}

func CreateMessage(t *testing.T, repo contact.Repository, name, email string, createdAt ...time.Time) contact.Message {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	msg, err := repo.CreateMessage(context.Background(), contact.Message{
		Name:      name,
		Email:     email,
		Message:   "Bonjour",
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateMessage(): %v", err)
	}
	return msg
}
