package store

import "time"

// SessionStatus is the lifecycle state of a Session row. A session
// transitions exactly once, from running to one of the terminal states.
type SessionStatus string

const (
	StatusRunning     SessionStatus = "running"
	StatusCompleted   SessionStatus = "completed"
	StatusInterrupted SessionStatus = "interrupted"
	StatusFailed      SessionStatus = "failed"
)

// orphanTimeout is how long a running session may go without URL activity
// before OpenSession reclassifies it as interrupted (spec §3).
const orphanTimeout = time.Hour

// Session is one crawl run, scoped to a single output directory.
type Session struct {
	ID           uint          `gorm:"primaryKey;autoIncrement"`
	OutputDir    string        `gorm:"index;not null"`
	StartURL     string        `gorm:"not null"`
	Status       SessionStatus `gorm:"index;not null"`
	StartedAt    time.Time     `gorm:"not null"`
	EndedAt      *time.Time
	ConfigJSON   string `gorm:"type:text"`
	PagesSuccess int    `gorm:"not null;default:0"`
	PagesFailed  int    `gorm:"not null;default:0"`
}

// ScrapedURL is one attempted URL, keyed by its post-normalization form.
// It is inserted on first attempt and updated (not duplicated) on
// re-attempt under --force-rescrape.
type ScrapedURL struct {
	URL             string `gorm:"primaryKey"`
	SessionID       uint   `gorm:"index;not null"`
	Session         Session `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	StatusCode      int
	TargetFilename  string `gorm:"index"`
	ScrapedAt       time.Time
	Error           string
	CanonicalURL    string `gorm:"index"`
	ContentChecksum string `gorm:"index"`
	Depth           int
}

// ContentChecksum is the SHA-256 of a scraped page's normalized plain
// text. It is never deleted by ClearURLs; only ForceRescrape combined
// with ClearURLs, or direct file removal, frees a checksum up for reuse.
type ContentChecksum struct {
	Checksum       string `gorm:"primaryKey"`
	FirstURL       string `gorm:"not null"`
	FirstScrapedAt time.Time
}

// schemaVersion holds the single row tracking the applied schema
// version, so future migrations can detect and apply forward-only
// upgrades.
type schemaVersion struct {
	ID      uint `gorm:"primaryKey"`
	Version int  `gorm:"not null"`
}

// currentSchemaVersion is bumped whenever a migration adds or changes
// a table shape beyond what AutoMigrate can express transparently.
const currentSchemaVersion = 1
