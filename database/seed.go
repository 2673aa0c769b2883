package database

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/auth"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeder populates a fresh database with accounts and a small catalogue
type Seeder struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewSeeder(db *gorm.DB, log *slog.Logger) *Seeder {
	return &Seeder{db: db, log: log}
}

func (s *Seeder) SeedAll() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"admin user", s.SeedAdminUser},
		{"staff user", s.SeedStaffUser},
		{"courses", s.SeedCourses},
		{"promotions", s.SeedPromotions},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("seed %s: %w", step.name, err)
		}
	}
	return nil
}

// SeedAdminUser creates the admin from ADMIN_EMAIL/ADMIN_PASSWORD
func (s *Seeder) SeedAdminUser() error {
	return s.seedAccount(model.RoleAdmin, "ADMIN_EMAIL", "ADMIN_PASSWORD", "System Administrator")
}

// SeedStaffUser creates the payment reviewer from STAFF_EMAIL/STAFF_PASSWORD
func (s *Seeder) SeedStaffUser() error {
	return s.seedAccount(model.RoleStaff, "STAFF_EMAIL", "STAFF_PASSWORD", "Payment Reviewer")
}

func (s *Seeder) seedAccount(role, emailKey, passwordKey, name string) error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", role).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		s.log.Info("account already exists, skipping", "role", role)
		return nil
	}

	email, password := os.Getenv(emailKey), os.Getenv(passwordKey)
	if email == "" || password == "" {
		s.log.Warn("credentials not set, skipping account", "role", role, "env", emailKey)
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user := &model.User{Email: email, PasswordHash: hash, Name: name, Role: role, IsActive: true}
	if err := s.db.Create(user).Error; err != nil {
		return err
	}
	s.log.Info("created account", "role", role, "email", email)
	return nil
}

type seedCourse struct {
	title, slug, description string
	price                    int64
	discount                 int64
	lessons                  []string
}

var sampleCourses = []seedCourse{
	{
		title:       "Go for Backend Engineers",
		slug:        "go-for-backend-engineers",
		description: "Build HTTP services, work with databases and ship them to production.",
		price:       1200000,
		discount:    990000,
		lessons:     []string{"Tooling and modules", "Types and interfaces", "HTTP with Fiber", "GORM and migrations", "Testing services"},
	},
	{
		title:       "SQL Fundamentals",
		slug:        "sql-fundamentals",
		description: "Queries, joins, indexes and transactions on PostgreSQL.",
		price:       600000,
		lessons:     []string{"SELECT and filtering", "Joins", "Aggregation", "Indexes", "Transactions"},
	},
	{
		title:       "Intro to Git",
		slug:        "intro-to-git",
		description: "A free primer on branches, commits and pull requests.",
		price:       0,
		lessons:     []string{"Commits", "Branches", "Remotes"},
	},
}

// SeedCourses creates the sample catalogue when no course exists
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		s.log.Info("courses already exist, skipping")
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, sc := range sampleCourses {
			course := model.Course{
				Title:       sc.title,
				Slug:        sc.slug,
				Description: sc.description,
				Price:       decimal.NewFromInt(sc.price),
				Status:      model.CourseStatusActive,
			}
			if sc.discount > 0 {
				course.DiscountPrice = decimal.NewNullDecimal(decimal.NewFromInt(sc.discount))
			}
			for i, title := range sc.lessons {
				course.Lessons = append(course.Lessons, model.Lesson{
					Title:    title,
					Position: i + 1,
					Duration: 600 + 120*i,
					IsActive: true,
				})
			}
			if err := tx.Create(&course).Error; err != nil {
				return err
			}
		}
		s.log.Info("created sample courses", "count", len(sampleCourses))
		return nil
	})
}

// SeedPromotions creates a welcome code valid for 90 days
func (s *Seeder) SeedPromotions() error {
	var count int64
	if err := s.db.Model(&model.Promotion{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		s.log.Info("promotions already exist, skipping")
		return nil
	}

	limit := 500
	now := time.Now().UTC()
	promos := []model.Promotion{
		{
			Code:           "WELCOME10",
			Name:           "Welcome discount",
			DiscountType:   model.DiscountPercentage,
			DiscountValue:  decimal.NewFromInt(10),
			MaxDiscount:    decimal.NewNullDecimal(decimal.NewFromInt(200000)),
			MinOrderValue:  decimal.NewFromInt(300000),
			UsageLimit:     &limit,
			UserUsageLimit: 1,
			StartDate:      now,
			EndDate:        now.AddDate(0, 0, 90),
			Status:         model.PromotionActive,
		},
		{
			Code:           "SAVE100K",
			Name:           "Flat 100k off",
			DiscountType:   model.DiscountFixed,
			DiscountValue:  decimal.NewFromInt(100000),
			MinOrderValue:  decimal.NewFromInt(500000),
			UserUsageLimit: 2,
			StartDate:      now,
			EndDate:        now.AddDate(0, 0, 30),
			Status:         model.PromotionActive,
		},
	}
	if err := s.db.Create(&promos).Error; err != nil {
		return err
	}
	s.log.Info("created promotions", "count", len(promos))
	return nil
}

// RunSeeds runs every seed step
func RunSeeds(db *gorm.DB, log *slog.Logger) error {
	return NewSeeder(db, log).SeedAll()
}
