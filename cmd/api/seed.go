package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"placement/internal/auth"
	"placement/internal/directory"
)

// seedLocalStudents returns demo student records for the in-memory store so the admin
// views have data during local development.
func seedLocalStudents(domain string) []directory.User {
	now := time.Now().UTC()

	profiles := []struct {
		name    string
		profile directory.Profile
		placed  bool
	}{
		{
			name: "Aarav Sharma",
			profile: directory.Profile{
				Phone:     "+919810000001",
				Branch:    "CSE",
				CGPA:      8.7,
				ResumeURL: "https://drive.example.com/aarav-resume.pdf",
				GitHubURL: "https://github.com/aarav-demo",
			},
			placed: true,
		},
		{
			name: "Diya Patel",
			profile: directory.Profile{
				Phone:       "+919810000002",
				Branch:      "IT",
				CGPA:        9.1,
				ResumeURL:   "https://drive.example.com/diya-resume.pdf",
				LinkedInURL: "https://www.linkedin.com/in/diya-demo",
			},
		},
		{
			name: "Kabir Singh",
			profile: directory.Profile{
				Phone:  "+919810000003",
				Branch: "ECE",
				CGPA:   7.4,
			},
		},
		{
			name: "Meera Iyer",
		},
	}

	users := make([]directory.User, 0, len(profiles))
	for i, p := range profiles {
		created := now.Add(-time.Duration(len(profiles)-i) * 24 * time.Hour)
		users = append(users, directory.User{
			ID:                uuid.New(),
			Email:             fmt.Sprintf("demo.student%d@%s", i+1, domain),
			Name:              p.name,
			Role:              auth.RoleStudent,
			Profile:           p.profile,
			IsProfileComplete: p.profile.Complete(),
			IsPlaced:          p.placed,
			CreatedAt:         created,
			UpdatedAt:         created,
			LastLoginAt:       created,
		})
	}
	return users
}
