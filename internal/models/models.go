package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// User roles and account states
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	StatusActive = "ACTIVE"
	StatusBanned = "BANNED"
)

// File and task states
const (
	FileUploaded = "UPLOADED"

	TaskPending   = "PENDING"
	TaskRunning   = "RUNNING"
	TaskCompleted = "COMPLETED"
	TaskFailed    = "FAILED"
	TaskCancelled = "CANCELLED"
)

// Verification code purposes
const (
	PurposeRegister = "register"
	PurposeLogin    = "login"
	PurposeReset    = "reset"
)

// BaseModel provides the numeric id and creation time shared by all models
type BaseModel struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// User is a registered account
type User struct {
	BaseModel
	Username     string     `gorm:"unique;not null"`
	Email        string     `gorm:"unique;not null"`
	PasswordHash string     `gorm:"not null"`
	AvatarURL    string
	Role         string     `gorm:"not null;default:USER"`
	Status       string     `gorm:"not null;default:ACTIVE"`
	LastLoginAt  *time.Time
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

// IsAdmin reports whether the account has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// VerificationCode is an emailed one-time code
type VerificationCode struct {
	BaseModel
	Email     string    `gorm:"index;not null"`
	Purpose   string    `gorm:"not null"`
	Code      string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}

// GenomeFile is an uploaded sequence file. Only its digest and sequence
// length are kept.
type GenomeFile struct {
	BaseModel
	UserID           int64  `gorm:"index;not null"`
	OriginalFilename string `gorm:"not null"`
	StoredFilename   string `gorm:"unique;not null"`
	FileSize         int64
	FileType         string
	FileFormat       string
	MD5Hash          string
	Reference        string
	Description      string
	Metadata         string `gorm:"type:text"`
	SequenceLength   int64
	Status           string `gorm:"not null;default:UPLOADED"`
	IsPublic         bool

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns the stored filename
func (f *GenomeFile) BeforeCreate(tx *gorm.DB) error {
	if f.StoredFilename == "" {
		f.StoredFilename = ulid.Make().String()
	}
	return nil
}

// AnalysisTask is one analysis run over a file
type AnalysisTask struct {
	BaseModel
	UserID        int64  `gorm:"index;not null"`
	FileID        int64  `gorm:"index;not null"`
	TaskName      string
	AnalysisType  string
	Status        string `gorm:"not null;default:PENDING"`
	Progress      int
	Parameters    string `gorm:"type:text"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ErrorMessage  string
	GenomeLength  int64
	ProphageCount int

	File    *GenomeFile      `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
	Regions []ProphageRegion `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

// IsArg reports whether the task is an ARG (resistance gene) analysis
func (t *AnalysisTask) IsArg() bool {
	return t.AnalysisType == "arg"
}

// Done reports whether the task reached a final state
func (t *AnalysisTask) Done() bool {
	switch t.Status {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// ProphageRegion is a region detected by an analysis
type ProphageRegion struct {
	BaseModel
	TaskID       int64 `gorm:"index;not null"`
	RegionIndex  int
	StartPos     int64
	EndPos       int64
	Confidence   float64
	Completeness string
	GeneCount    int
}

// LoginLog records a login; SessionID is the token's id and a logout closes it
type LoginLog struct {
	BaseModel
	UserID     int64  `gorm:"index;not null"`
	SessionID  string `gorm:"unique;not null"`
	LoginTime  time.Time
	LogoutTime *time.Time
	Status     string
	IPAddress  string
	UserAgent  string
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&User{}, &VerificationCode{}, &GenomeFile{}, &AnalysisTask{}, &ProphageRegion{}, &LoginLog{},
	}

	return db.AutoMigrate(models...)
}

// FindByID finds a record by numeric id
func FindByID[T any](db *gorm.DB, id int64, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
