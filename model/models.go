package model

// All lists every persisted model in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&RefreshToken{},
		&Course{},
		&Lesson{},
		&CartItem{},
		&Promotion{},
		&Order{},
		&OrderItem{},
		&PromotionUsage{},
		&Payment{},
		&Enrollment{},
		&LessonProgress{},
		&UserNotification{},
		&CronJobLog{},
		&AdminAuditLog{},
	}
}
