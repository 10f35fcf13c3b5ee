package restaurant

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const defaultAdminRole = "admin"

// StudentRegistration carries the fields of a new student account.
type StudentRegistration struct {
	Number     string
	Name       string
	Email      string
	University string
	Password   string
}

// AdminRegistration carries the fields of a new administrator.
type AdminRegistration struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// ProfileUpdate carries a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	Name       *string
	Email      *string
	University *string
	Password   *string
}

// RegisterStudent creates an active student with empty balances.
func (service *Service) RegisterStudent(ctx context.Context, registration StudentRegistration) (Student, error) {
	student, operationError := service.newStudent(registration)
	if operationError == nil {
		operationError = service.store.CreateStudent(ctx, student)
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationRegisterStudent,
		StudentID: student.ID,
		Error:     operationError,
	})
	if operationError != nil {
		return Student{}, operationError
	}
	return student, nil
}

// AuthenticateStudent checks a student's credentials.
func (service *Service) AuthenticateStudent(ctx context.Context, number StudentNumber, password string) (Student, error) {
	student, err := service.store.FindStudentByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Student{}, ErrInvalidCredentials
		}
		return Student{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(password)); err != nil {
		return Student{}, ErrInvalidCredentials
	}
	if !student.CanReserve() {
		return Student{}, ErrStudentInactive
	}
	return student, nil
}

// AuthenticateAdmin checks an administrator's credentials.
func (service *Service) AuthenticateAdmin(ctx context.Context, email string, password string) (Admin, error) {
	admin, err := service.store.FindAdminByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Admin{}, ErrInvalidCredentials
		}
		return Admin{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return Admin{}, ErrInvalidCredentials
	}
	return admin, nil
}

// ResumeStudentSession re-reads the student behind a session so deactivated accounts lose access.
func (service *Service) ResumeStudentSession(ctx context.Context, studentID StudentID) (StudentSession, error) {
	student, err := service.store.GetStudent(ctx, studentID)
	if err != nil {
		return StudentSession{}, err
	}
	if !student.CanReserve() {
		return StudentSession{}, ErrStudentInactive
	}
	return NewStudentSession(student), nil
}

// ResumeAdminSession re-reads the administrator behind a session.
func (service *Service) ResumeAdminSession(ctx context.Context, adminID AdminID) (AdminSession, error) {
	admin, err := service.store.GetAdmin(ctx, adminID)
	if err != nil {
		return AdminSession{}, err
	}
	return NewAdminSession(admin), nil
}

// CreateAdmin adds an administrator.
func (service *Service) CreateAdmin(ctx context.Context, registration AdminRegistration) (Admin, error) {
	admin, operationError := func() (Admin, error) {
		adminID, err := NewAdminID(service.newID())
		if err != nil {
			return Admin{}, err
		}
		name := strings.TrimSpace(registration.Name)
		if name == "" {
			return Admin{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
		}
		email, err := validateEmail(registration.Email)
		if err != nil {
			return Admin{}, err
		}
		passwordHash, err := service.hashPassword(registration.Password)
		if err != nil {
			return Admin{}, err
		}
		role := strings.TrimSpace(registration.Role)
		if role == "" {
			role = defaultAdminRole
		}
		admin := Admin{
			ID:           adminID,
			Name:         name,
			Email:        email,
			PasswordHash: passwordHash,
			Role:         role,
			CreatedAt:    service.nowFn().UTC(),
		}
		if err := service.store.CreateAdmin(ctx, admin); err != nil {
			return Admin{}, err
		}
		return admin, nil
	}()
	service.logOperation(ctx, OperationLog{Operation: operationCreateAdmin, Error: operationError})
	return admin, operationError
}

// GetStudent returns a student record, including soft-deleted ones.
func (service *Service) GetStudent(ctx context.Context, studentID StudentID) (Student, error) {
	return service.store.GetStudent(ctx, studentID)
}

// UpdateProfile changes a student's own profile fields.
func (service *Service) UpdateProfile(ctx context.Context, studentID StudentID, update ProfileUpdate) (Student, error) {
	return service.updateStudent(ctx, studentID, update, nil)
}

func (service *Service) updateStudent(ctx context.Context, studentID StudentID, update ProfileUpdate, active *bool) (Student, error) {
	var updated Student
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		student, err := transactionStore.LockStudent(ctx, studentID)
		if err != nil {
			return err
		}
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", ErrInvalidProfile)
			}
			student.Name = name
		}
		if update.Email != nil {
			email, err := validateEmail(*update.Email)
			if err != nil {
				return err
			}
			student.Email = email
		}
		if update.University != nil {
			student.University = strings.TrimSpace(*update.University)
		}
		if update.Password != nil {
			passwordHash, err := service.hashPassword(*update.Password)
			if err != nil {
				return err
			}
			student.PasswordHash = passwordHash
		}
		if active != nil {
			if student.DeletedAt != nil {
				return fmt.Errorf("%w: deleted students are reactivated through restore", ErrInvalidProfile)
			}
			student.Active = *active
		}
		student.UpdatedAt = service.nowFn().UTC()
		if err := transactionStore.UpdateStudent(ctx, student); err != nil {
			return err
		}
		updated = student
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUpdateStudent,
		StudentID: studentID,
		Error:     operationError,
	})
	if operationError != nil {
		return Student{}, operationError
	}
	return updated, nil
}

func (service *Service) newStudent(registration StudentRegistration) (Student, error) {
	studentID, err := NewStudentID(service.newID())
	if err != nil {
		return Student{}, err
	}
	number, err := NewStudentNumber(registration.Number)
	if err != nil {
		return Student{}, err
	}
	name := strings.TrimSpace(registration.Name)
	if name == "" {
		return Student{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	email, err := validateEmail(registration.Email)
	if err != nil {
		return Student{}, err
	}
	passwordHash, err := service.hashPassword(registration.Password)
	if err != nil {
		return Student{}, err
	}
	nowUTC := service.nowFn().UTC()
	return Student{
		ID:           studentID,
		Number:       number,
		Name:         name,
		Email:        email,
		University:   strings.TrimSpace(registration.University),
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    nowUTC,
		UpdatedAt:    nowUTC,
	}, nil
}

func (service *Service) hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrInvalidPassword, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), service.passwordCost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	return string(hash), nil
}

func validateEmail(raw string) (string, error) {
	normalized := normalizeEmail(raw)
	address, err := mail.ParseAddress(normalized)
	if err != nil || address.Address != normalized {
		return "", fmt.Errorf("%w: invalid email %q", ErrInvalidProfile, raw)
	}
	return normalized, nil
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
