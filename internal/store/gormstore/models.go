package gormstore

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Student mirrors the students table. DeletedAt is managed explicitly so soft-deleted
// rows stay readable by id.
type Student struct {
	ID                 string     `gorm:"type:uuid;primaryKey"`
	Number             string     `gorm:"not null;uniqueIndex:idx_students_number"`
	Name               string     `gorm:"not null"`
	Email              string     `gorm:"not null;uniqueIndex:idx_students_email"`
	University         string     `gorm:"not null;default:''"`
	PasswordHash       string     `gorm:"not null"`
	Points             int64      `gorm:"not null;default:0;check:chk_students_points,points >= 0"`
	WalletBalanceCents int64      `gorm:"not null;default:0;check:chk_students_wallet,wallet_balance_cents >= 0"`
	Active             bool       `gorm:"not null"`
	CreatedAt          time.Time  `gorm:"not null"`
	UpdatedAt          time.Time  `gorm:"not null"`
	DeletedAt          *time.Time `gorm:"index"`
}

func (Student) TableName() string { return "students" }

// Admin mirrors the admins table.
type Admin struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"not null;uniqueIndex:idx_admins_email"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null;default:'admin'"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (Admin) TableName() string { return "admins" }

// MenuOffering mirrors the menu_offerings table.
type MenuOffering struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	Weekday    string         `gorm:"not null;index:idx_menu_offerings_day_slot,priority:1"`
	MealSlot   string         `gorm:"not null;index:idx_menu_offerings_day_slot,priority:2"`
	Title      string         `gorm:"size:255;not null"`
	Tags       datatypes.JSON `gorm:"type:jsonb;not null"`
	Status     string         `gorm:"not null"`
	PriceCents int64          `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (MenuOffering) TableName() string { return "menu_offerings" }

// Reservation mirrors the reservations table. Date holds the civil date as YYYY-MM-DD
// so range filters compare lexically on every driver.
type Reservation struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	StudentID      string    `gorm:"type:uuid;not null;index:idx_reservations_student_created,priority:1"`
	MenuOfferingID string    `gorm:"type:uuid;not null;index"`
	Date           string    `gorm:"type:varchar(10);not null;index"`
	RedemptionCode string    `gorm:"not null;uniqueIndex:idx_reservations_redemption_code"`
	Status         string    `gorm:"not null;index"`
	PaymentMethod  string    `gorm:"not null"`
	PriceCents     int64     `gorm:"not null"`
	PointsCharged  int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null;index:idx_reservations_student_created,priority:2"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (Reservation) TableName() string { return "reservations" }

// WalletTransaction mirrors the append-only wallet_transactions table.
type WalletTransaction struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	StudentID     string    `gorm:"type:uuid;not null;index:idx_wallet_transactions_student_created,priority:1"`
	Kind          string    `gorm:"not null"`
	AmountCents   int64     `gorm:"not null"`
	Description   string    `gorm:"not null;default:''"`
	ReservationID *string   `gorm:"type:uuid;index"`
	CreatedAt     time.Time `gorm:"not null;index:idx_wallet_transactions_student_created,priority:2"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }

// PointsTransaction mirrors the append-only points_transactions table.
type PointsTransaction struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	StudentID     string    `gorm:"type:uuid;not null;index:idx_points_transactions_student_created,priority:1"`
	Kind          string    `gorm:"not null"`
	Points        int64     `gorm:"not null"`
	Reason        string    `gorm:"not null"`
	ReservationID *string   `gorm:"type:uuid;index"`
	FeedbackID    *string   `gorm:"type:uuid;index"`
	CreatedAt     time.Time `gorm:"not null;index:idx_points_transactions_student_created,priority:2"`
}

func (PointsTransaction) TableName() string { return "points_transactions" }

// Feedback mirrors the feedback table.
type Feedback struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	StudentID      string         `gorm:"type:uuid;not null;index"`
	MenuOfferingID string         `gorm:"type:uuid;not null;index"`
	Rating         int            `gorm:"not null"`
	Category       string         `gorm:"not null;default:''"`
	Comment        string         `gorm:"type:text;not null;default:''"`
	Sentiment      string         `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"not null;index"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (Feedback) TableName() string { return "feedback" }

// Models lists every table in migration order.
func Models() []interface{} {
	return []interface{}{
		&Student{},
		&Admin{},
		&MenuOffering{},
		&Reservation{},
		&WalletTransaction{},
		&PointsTransaction{},
		&Feedback{},
	}
}

// AutoMigrate creates or updates the schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
