package models

import (
	"time"
)

// Request is one stored access-log record. Rows are append-only.
type Request struct {
	ID uint      `gorm:"primaryKey;autoIncrement"`
	Ts time.Time `gorm:"column:ts;not null;index:idx_requests_ts"`

	// Client info
	RemoteAddr    string `gorm:"not null"`
	Identd        string
	UserOrSession string

	// Request info
	Method      string `gorm:"not null"`
	URL         string `gorm:"column:url;type:text;not null"`
	Scheme      string
	Host        string `gorm:"index:idx_requests_host"`
	Port        int
	Path        string `gorm:"type:text"`
	Query       string `gorm:"type:text"`
	HTTPVersion string `gorm:"column:http_version"`

	// Response info
	Status int   `gorm:"not null;index:idx_requests_status"`
	Bytes  int64 `gorm:"not null"`

	Country   string `gorm:"index:idx_requests_country"`
	UserAgent string `gorm:"type:text"`
	Raw       string `gorm:"type:text;not null"`
}

func (Request) TableName() string {
	return "requests"
}
