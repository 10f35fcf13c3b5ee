package restaurant

// SessionScope names the audience a session was issued for.
type SessionScope string

const (
	SessionScopeStudent SessionScope = "student"
	SessionScopeAdmin   SessionScope = "admin"
)

// Session is either a StudentSession or an AdminSession; no other implementations exist.
type Session interface {
	Scope() SessionScope
	Subject() string
	sealedSession()
}

// StudentSession identifies an authenticated student.
type StudentSession struct {
	StudentID StudentID
	Name      string
	Email     string
}

// Scope returns SessionScopeStudent.
func (StudentSession) Scope() SessionScope { return SessionScopeStudent }

// Subject returns the student id.
func (session StudentSession) Subject() string { return session.StudentID.String() }

func (StudentSession) sealedSession() {}

// AdminSession identifies an authenticated administrator.
type AdminSession struct {
	AdminID AdminID
	Name    string
	Email   string
	Role    string
}

// Scope returns SessionScopeAdmin.
func (AdminSession) Scope() SessionScope { return SessionScopeAdmin }

// Subject returns the admin id.
func (session AdminSession) Subject() string { return session.AdminID.String() }

func (AdminSession) sealedSession() {}

// NewStudentSession builds the session carried for student.
func NewStudentSession(student Student) StudentSession {
	return StudentSession{StudentID: student.ID, Name: student.Name, Email: student.Email}
}

// NewAdminSession builds the session carried for admin.
func NewAdminSession(admin Admin) AdminSession {
	return AdminSession{AdminID: admin.ID, Name: admin.Name, Email: admin.Email, Role: admin.Role}
}
