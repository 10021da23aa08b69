package models

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether a user may pick the role at registration.
func (r Role) SelfAssignable() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleStaff
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	StudentCode  *string   `json:"student_code"`
	Role         Role      `json:"role"`
	Department   *string   `json:"department"`
	AvatarURL    *string   `json:"avatar_url"`
	IsBlocked    bool      `json:"is_blocked"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type FileFormat string

const (
	FormatPDF  FileFormat = "pdf"
	FormatDOCX FileFormat = "docx"
	FormatZIP  FileFormat = "zip"
)

func ParseFileFormat(ext string) (FileFormat, bool) {
	switch f := FileFormat(ext); f {
	case FormatPDF, FormatDOCX, FormatZIP:
		return f, true
	}
	return "", false
}

type Document struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	FilePath       string     `json:"file_path"`
	FileName       string     `json:"file_name"`
	FileSize       int64      `json:"file_size"`
	FileFormat     FileFormat `json:"file_format"`
	AuthorID       int64      `json:"author_id"`
	AuthorName     string     `json:"author_name"`
	CategoryID     *int64     `json:"category_id"`
	CategoryName   *string    `json:"category_name"`
	DocumentTypeID *int64     `json:"document_type_id"`
	DocTypeName    *string    `json:"doc_type_name"`
	ViewCount      int64      `json:"view_count"`
	DownloadCount  int64      `json:"download_count"`
	IsDeleted      bool       `json:"is_deleted"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DocumentMeta is the editable part of a document.
type DocumentMeta struct {
	Title          string
	Description    string
	CategoryID     *int64
	DocumentTypeID *int64
}

// StoredFile describes a blob already written to upload storage.
type StoredFile struct {
	Path   string
	Name   string
	Size   int64
	Format FileFormat
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	ParentID    *int64    `json:"parent_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type DocumentType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type AdminLog struct {
	ID         int64     `json:"id"`
	AdminID    int64     `json:"admin_id"`
	AdminName  string    `json:"admin_name"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   int64     `json:"target_id"`
	Reason     *string   `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

type PasswordReset struct {
	ID        int64
	Email     string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type TimeRange string

const (
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeYear  TimeRange = "year"
)

// Since returns the lower creation bound for the range, or false when the
// range is empty or unknown.
func (tr TimeRange) Since(now time.Time) (time.Time, bool) {
	switch tr {
	case RangeWeek:
		return now.AddDate(0, 0, -7), true
	case RangeMonth:
		return now.AddDate(0, -1, 0), true
	case RangeYear:
		return now.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

type DocumentFilter struct {
	Search         string
	CategoryID     *int64
	DocumentTypeID *int64
	Formats        []FileFormat
	AuthorID       *int64
	IncludeDeleted bool
	Since          *time.Time
}

type UserQuery struct {
	Role   Role
	Status string
	Limit  int
	Offset int
}

type CountByName struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type TopDocument struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	DownloadCount int64  `json:"download_count"`
	ViewCount     int64  `json:"view_count"`
}

type Statistics struct {
	TotalDocuments   int64         `json:"total_documents"`
	TotalUsers       int64         `json:"total_users"`
	TotalDownloads   int64         `json:"total_downloads"`
	MonthlyDocuments []MonthCount  `json:"monthly_documents"`
	DocsByCategory   []CountByName `json:"docs_by_category"`
	DocsByType       []CountByName `json:"docs_by_type"`
	TopDocuments     []TopDocument `json:"top_documents"`
}
