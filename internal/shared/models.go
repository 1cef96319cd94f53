// ============================================================================
// internal/shared/models.go
// Shared data models and structs for MongoDB documents
// ============================================================================

package shared

import (
	"time"
)

// ============================================================================
// Actors & Roles
// ============================================================================

// Actor is the already-authenticated caller descriptor attached to every
// mutating operation. Token verification happens upstream.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleTeacher    = "teacher"
	RolePreceptor  = "preceptor"
	RoleStudent    = "student"
)

// IsValidRole checks if a user role is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher, RolePreceptor, RoleStudent:
		return true
	}
	return false
}

// CanBypassCalendar reports whether the actor may write any grade instance at
// any time, ignoring progression order, grading windows and manual closure.
// Intentional escape hatch for institutional corrections.
func CanBypassCalendar(a Actor) bool {
	return a.Role == RoleSuperAdmin
}

// ============================================================================
// User Models
// ============================================================================

// User represents an account: student, teacher, preceptor or admin.
type User struct {
	ID           string     `bson:"_id" json:"id"`
	FirstName    string     `bson:"firstName" json:"firstName"`
	LastName     string     `bson:"lastName" json:"lastName"`
	DNI          string     `bson:"dni" json:"dni"`
	Email        string     `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash string     `bson:"password" json:"-"` // Never expose in JSON
	Role         string     `bson:"role" json:"role"`
	IsActive     bool       `bson:"active" json:"active"`
	FileNumber   string     `bson:"fileNumber,omitempty" json:"fileNumber,omitempty"`
	BirthDate    *time.Time `bson:"birthDate,omitempty" json:"birthDate,omitempty"`

	// Teacher-specific: subject area. Required for teachers.
	Area string `bson:"area,omitempty" json:"area,omitempty"`

	// Course history for students.
	Courses []UserCourse `bson:"courses,omitempty" json:"courses,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// UserCourse is one entry in a student's course history.
type UserCourse struct {
	CourseID string     `bson:"course" json:"course"`
	Status   string     `bson:"status" json:"status"` // active, finished, dropped, moved
	From     *time.Time `bson:"from,omitempty" json:"from,omitempty"`
	To       *time.Time `bson:"to,omitempty" json:"to,omitempty"`
}

// Session represents an active login (for server-side revocation).
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"userId"`
	Token     string    `bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// ============================================================================
// Course & Subject Models
// ============================================================================

// Course groups students, subjects and staff for one academic year.
type Course struct {
	ID           string          `bson:"_id" json:"id"`
	Name         string          `bson:"name" json:"name"`
	Code         string          `bson:"code" json:"code"`
	Modality     string          `bson:"modality" json:"modality"`
	AcademicYear int             `bson:"academicYear" json:"academicYear"`
	Active       bool            `bson:"active" json:"active"`
	Staff        []CourseStaff   `bson:"users,omitempty" json:"users,omitempty"`
	Subjects     []CourseSubject `bson:"subjects,omitempty" json:"subjects,omitempty"`
	Students     []CourseStudent `bson:"students,omitempty" json:"students,omitempty"`
	CreatedAt    time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time       `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// CourseStaff assigns a non-teaching role (preceptor, tutor...) to a course.
type CourseStaff struct {
	UserID string `bson:"user" json:"user"`
	Role   string `bson:"role" json:"role"`
}

// CourseSubject links a subject taught in the course to its teacher.
type CourseSubject struct {
	SubjectID string `bson:"subject" json:"subject"`
	TeacherID string `bson:"teacher" json:"teacher"`
}

// CourseStudent is an enrollment entry; inactive students keep their history.
type CourseStudent struct {
	StudentID string `bson:"student" json:"student"`
	Active    bool   `bson:"active" json:"active"`
}

// Subject is a curriculum unit, ordered for the report card.
type Subject struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Code         string    `bson:"code" json:"code"`
	AcademicYear int       `bson:"academicYear" json:"academicYear"`
	Order        int       `bson:"order" json:"order"`
	Type         string    `bson:"type" json:"type"` // mandatory, optional
	Active       bool      `bson:"active" json:"active"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// ============================================================================
// Academic Calendar Models
// ============================================================================

// Period keys form a closed set; insertion order in a config is display
// order, not progression order.
const (
	PeriodFirstTerm             = "firstTerm"
	PeriodSecondTerm            = "secondTerm"
	PeriodRecuperatoryFirstTerm = "recuperatoryFirstTerm"
	PeriodDecember              = "december"
	PeriodFebruary              = "february"
)

// IsValidPeriodKey checks membership in the closed period-key set.
func IsValidPeriodKey(key string) bool {
	switch key {
	case PeriodFirstTerm, PeriodSecondTerm, PeriodRecuperatoryFirstTerm, PeriodDecember, PeriodFebruary:
		return true
	}
	return false
}

const (
	EvaluationPartial = "partial"
	EvaluationFinal   = "final"
)

// GradingWindow is the inclusive date range during which an evaluation
// accepts writes.
type GradingWindow struct {
	StartDate time.Time `bson:"startDate" json:"startDate"`
	EndDate   time.Time `bson:"endDate" json:"endDate"`
}

// Evaluation is a dated sub-component of a term period.
type Evaluation struct {
	Type            string        `bson:"type" json:"type"` // partial, final
	GradingWindow   GradingWindow `bson:"gradingWindow" json:"gradingWindow"`
	PublicationDate time.Time     `bson:"publicationDate" json:"publicationDate"`
}

// Period is a calendar grouping. Term periods carry dated evaluations;
// recuperatory/summer periods are governed by manual closure only.
type Period struct {
	Key              string       `bson:"key" json:"key"`
	Name             string       `bson:"name" json:"name"`
	Evaluations      []Evaluation `bson:"evaluations" json:"evaluations"`
	IsManuallyClosed bool         `bson:"isManuallyClosed" json:"isManuallyClosed"`
	ClosedAt         *time.Time   `bson:"closedAt" json:"closedAt"`
	ClosedBy         *string      `bson:"closedBy" json:"closedBy"`
}

// Evaluation returns the evaluation of the given type, or nil.
func (p *Period) Evaluation(evaluationType string) *Evaluation {
	for i := range p.Evaluations {
		if p.Evaluations[i].Type == evaluationType {
			return &p.Evaluations[i]
		}
	}
	return nil
}

// AcademicYearConfig is the institution-wide grading calendar, one per year.
type AcademicYearConfig struct {
	ID           string    `bson:"_id" json:"id"`
	AcademicYear int       `bson:"academicYear" json:"academicYear"`
	Periods      []Period  `bson:"periods" json:"periods"`
	CreatedBy    string    `bson:"createdBy" json:"createdBy"`
	UpdatedBy    string    `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Period returns the period with the given key, or nil.
func (c *AcademicYearConfig) Period(key string) *Period {
	for i := range c.Periods {
		if c.Periods[i].Key == key {
			return &c.Periods[i]
		}
	}
	return nil
}

// ============================================================================
// Grade Models
// ============================================================================

// GradeSlot holds one instance value with its audit trail. A cleared slot has
// all three fields null; the parent record survives the clear.
type GradeSlot struct {
	Value    *float64   `bson:"value" json:"value"`
	LoadedBy *string    `bson:"loadedBy" json:"loadedBy"`
	LoadedAt *time.Time `bson:"loadedAt" json:"loadedAt"`
}

// TermGrades is the partial/final pair of a term period.
type TermGrades struct {
	Partial GradeSlot `bson:"partial" json:"partial"`
	Final   GradeSlot `bson:"final" json:"final"`
}

// GradeLedger is the fixed-shape mapping over the seven canonical instances.
type GradeLedger struct {
	FirstTerm             TermGrades `bson:"firstTerm" json:"firstTerm"`
	SecondTerm            TermGrades `bson:"secondTerm" json:"secondTerm"`
	RecuperatoryFirstTerm GradeSlot  `bson:"recuperatoryFirstTerm" json:"recuperatoryFirstTerm"`
	December              GradeSlot  `bson:"december" json:"december"`
	February              GradeSlot  `bson:"february" json:"february"`
}

// GradeRecord is the ledger of a student's grades for one subject in one
// course and year. Unique per (student, subject, course, academicYear).
type GradeRecord struct {
	ID           string      `bson:"_id,omitempty" json:"id"`
	StudentID    string      `bson:"student" json:"student"`
	SubjectID    string      `bson:"subject" json:"subject"`
	CourseID     string      `bson:"course" json:"course"`
	AcademicYear int         `bson:"academicYear" json:"academicYear"`
	IsRepeating  bool        `bson:"isRepeating" json:"isRepeating"`
	Grades       GradeLedger `bson:"grades" json:"grades"`
	CreatedAt    time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time   `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// ============================================================================
// Subject Outcome Models
// ============================================================================

const (
	SubjectPassed = "passed"
	SubjectFailed = "failed"
)

// IsValidSubjectOutcome checks membership in the pass/fail enum.
func IsValidSubjectOutcome(status string) bool {
	return status == SubjectPassed || status == SubjectFailed
}

// SubjectStatus is a student's final outcome for one subject in one academic
// year. Unique per (student, subject, academicYear); a subject passed in any
// year can never be marked failed afterwards.
type SubjectStatus struct {
	ID           string    `bson:"_id" json:"id"`
	StudentID    string    `bson:"student" json:"student"`
	SubjectID    string    `bson:"subject" json:"subject"`
	AcademicYear int       `bson:"academicYear" json:"academicYear"`
	Status       string    `bson:"status" json:"status"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// ============================================================================
// Attendance Models
// ============================================================================

const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
)

// AttendanceLate marks late arrival; minutes only when isLate is set.
type AttendanceLate struct {
	IsLate  bool `bson:"isLate" json:"isLate"`
	Minutes *int `bson:"minutes" json:"minutes"`
}

// AttendanceJustification records an excused absence.
type AttendanceJustification struct {
	IsJustified    bool    `bson:"isJustified" json:"isJustified"`
	CertificateURL *string `bson:"certificateUrl" json:"certificateUrl"`
}

// Attendance is one day's record for a student in a course. Unique per
// (userId, courseId, academicYear, trimester, date).
type Attendance struct {
	ID            string                  `bson:"_id,omitempty" json:"id"`
	StudentID     string                  `bson:"userId" json:"userId"`
	CourseID      string                  `bson:"courseId" json:"courseId"`
	AcademicYear  int                     `bson:"academicYear" json:"academicYear"`
	Trimester     int                     `bson:"trimester" json:"trimester"`
	Date          string                  `bson:"date" json:"date"` // YYYY-MM-DD
	Status        string                  `bson:"attendanceStatus" json:"attendanceStatus"`
	Late          AttendanceLate          `bson:"late" json:"late"`
	Justification AttendanceJustification `bson:"justification" json:"justification"`
	Notes         string                  `bson:"notes" json:"notes"`
	CreatedAt     time.Time               `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time               `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}
