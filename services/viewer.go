package services

import (
	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
)

// Viewer is the authenticated caller on whose behalf a read or write happens
type Viewer struct {
	UserID uint
	Role   string
}

// Privileged reports whether the viewer can see other users' records
func (v Viewer) Privileged() bool {
	return model.IsStaffOrAdmin(v.Role)
}

// Page is a 1-based page request
type Page struct {
	Page  int
	Limit int
}

func (p Page) limit() int {
	_, limit := response.NormalizePage(p.Page, p.Limit)
	return limit
}

func (p Page) offset() int {
	page, limit := response.NormalizePage(p.Page, p.Limit)
	return (page - 1) * limit
}
