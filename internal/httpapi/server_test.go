package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/canteen/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
	testSigningKey    = "test-signing-key"
	adminEmail        = "admin@canteen.example"
	adminPassword     = "admin-password"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    *pageMeta       `json:"meta"`
	Error   *apiError       `json:"error"`
}

type testServer struct {
	router  *gin.Engine
	service *restaurant.Service
	cfg     Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := func() time.Time { return time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC) }
	service, err := restaurant.NewService(gormstore.New(db), clock, restaurant.WithPasswordCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := Config{SessionSigningKey: testSigningKey}
	router, err := NewRouter(cfg, service, nil, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return &testServer{router: router, service: service, cfg: cfg}
}

func (server *testServer) do(t *testing.T, method string, path string, body any, cookie *http.Cookie) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set(contentTypeHeader, contentTypeJSON)
	}
	if cookie != nil {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	server.router.ServeHTTP(recorder, request)
	var envelope testEnvelope
	if recorder.Body.Len() > 0 && recorder.Header().Get(contentTypeHeader) != "" && bytes.HasPrefix(recorder.Body.Bytes(), []byte("{")) {
		if err := json.Unmarshal(recorder.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return recorder, envelope
}

func (server *testServer) sessionCookie(t *testing.T, recorder *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == server.cfg.SessionCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatalf("expected session cookie %s", server.cfg.SessionCookieName)
	return nil
}

func decodeData[T any](t *testing.T, envelope testEnvelope) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(envelope.Data, &value); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return value
}

func (server *testServer) registerStudent(t *testing.T, number string) *http.Cookie {
	t.Helper()
	recorder, envelope := server.do(t, http.MethodPost, "/api/v1/student/register", registerRequest{
		StudentNumber: number,
		Name:          "Student " + number,
		Email:         number + "@student.example",
		University:    "North Campus",
		Password:      "password123",
	}, nil)
	if recorder.Code != http.StatusCreated || !envelope.Success {
		t.Fatalf("register: status %d body %s", recorder.Code, recorder.Body.String())
	}
	return server.sessionCookie(t, recorder)
}

func (server *testServer) loginStudent(t *testing.T, number string) *http.Cookie {
	t.Helper()
	recorder, _ := server.do(t, http.MethodPost, "/api/v1/student/login", studentLoginRequest{StudentNumber: number, Password: "password123"}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("student login: status %d body %s", recorder.Code, recorder.Body.String())
	}
	return server.sessionCookie(t, recorder)
}

func (server *testServer) loginAdmin(t *testing.T) *http.Cookie {
	t.Helper()
	if _, err := server.service.CreateAdmin(context.Background(), restaurant.AdminRegistration{
		Name:     "Admin",
		Email:    adminEmail,
		Password: adminPassword,
	}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	recorder, _ := server.do(t, http.MethodPost, "/api/v1/admin/login", adminLoginRequest{Email: adminEmail, Password: adminPassword}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("admin login: status %d body %s", recorder.Code, recorder.Body.String())
	}
	return server.sessionCookie(t, recorder)
}

func (server *testServer) createMenu(t *testing.T, adminCookie *http.Cookie) offeringPayload {
	t.Helper()
	weekday, slot, title, price := "Wed", "lunch", "Couscous", "3.50"
	recorder, envelope := server.do(t, http.MethodPost, "/api/v1/admin/menus", offeringRequest{
		Weekday:  &weekday,
		MealSlot: &slot,
		Title:    &title,
		Tags:     &[]string{"traditional", "halal"},
		Price:    &price,
	}, adminCookie)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create menu: status %d body %s", recorder.Code, recorder.Body.String())
	}
	return decodeData[offeringPayload](t, envelope)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	server := newTestServer(t)
	recorder, _ := server.do(t, http.MethodGet, "/healthz", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("healthz: %d", recorder.Code)
	}
	recorder, _ = server.do(t, http.MethodGet, "/metrics", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("metrics: %d", recorder.Code)
	}
}

func TestReservationFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)
	adminCookie := server.loginAdmin(t)
	offering := server.createMenu(t, adminCookie)
	studentCookie := server.registerStudent(t, "STU100")

	recorder, envelope := server.do(t, http.MethodPost, "/api/v1/wallet/recharge", rechargeRequest{Amount: "10.00", PaymentReference: "card-1"}, studentCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("recharge: status %d body %s", recorder.Code, recorder.Body.String())
	}
	if balance := decodeData[rechargeResponse](t, envelope); balance.BalanceCents != 1000 || balance.Balance != "10.00" {
		t.Fatalf("unexpected recharge response %+v", balance)
	}

	recorder, envelope = server.do(t, http.MethodPost, "/api/v1/reservations", createReservationRequest{
		MenuOfferingID: offering.ID,
		Date:           "2025-03-12",
		PaymentMethod:  "wallet",
	}, studentCookie)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("reserve: status %d body %s", recorder.Code, recorder.Body.String())
	}
	reservation := decodeData[reservationPayload](t, envelope)
	if reservation.Status != "confirmed" || reservation.PriceCents != 350 || len(reservation.RedemptionCode) != len("RES-")+10 {
		t.Fatalf("unexpected reservation %+v", reservation)
	}

	recorder, envelope = server.do(t, http.MethodGet, "/api/v1/wallet", nil, studentCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("wallet: status %d", recorder.Code)
	}
	if wallet := decodeData[walletPayload](t, envelope); wallet.Balance != "6.50" || len(wallet.Transactions) != 2 {
		t.Fatalf("unexpected wallet %+v", wallet)
	}

	cancelPath := "/api/v1/reservations/" + reservation.ID + "/cancel"
	recorder, _ = server.do(t, http.MethodPost, cancelPath, nil, studentCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("cancel: status %d body %s", recorder.Code, recorder.Body.String())
	}
	recorder, envelope = server.do(t, http.MethodPost, cancelPath, nil, studentCookie)
	if recorder.Code != http.StatusConflict || envelope.Error == nil || envelope.Error.Code != errorCodeAlreadyCancelled {
		t.Fatalf("expected already cancelled conflict, got %d %s", recorder.Code, recorder.Body.String())
	}

	recorder, envelope = server.do(t, http.MethodGet, "/api/v1/profile", nil, studentCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("profile: status %d", recorder.Code)
	}
	if profile := decodeData[studentPayload](t, envelope); profile.WalletBalance != "10.00" {
		t.Fatalf("expected balance restored to 10.00, got %s", profile.WalletBalance)
	}

	recorder, envelope = server.do(t, http.MethodGet, "/api/v1/profile/history", nil, studentCookie)
	if recorder.Code != http.StatusOK || envelope.Meta == nil || envelope.Meta.Count != 1 {
		t.Fatalf("history: status %d body %s", recorder.Code, recorder.Body.String())
	}
}

func TestReservationRejectionsMapToStatusCodes(t *testing.T) {
	server := newTestServer(t)
	adminCookie := server.loginAdmin(t)
	offering := server.createMenu(t, adminCookie)
	studentCookie := server.registerStudent(t, "STU200")

	testCases := []struct {
		name       string
		request    createReservationRequest
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty wallet",
			request:    createReservationRequest{MenuOfferingID: offering.ID, Date: "2025-03-12", PaymentMethod: "wallet"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   errorCodeInsufficientFunds,
		},
		{
			name:       "no points",
			request:    createReservationRequest{MenuOfferingID: offering.ID, Date: "2025-03-12", PaymentMethod: "points"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   errorCodeInsufficientPoints,
		},
		{
			name:       "unknown payment method",
			request:    createReservationRequest{MenuOfferingID: offering.ID, Date: "2025-03-12", PaymentMethod: "crypto"},
			wantStatus: http.StatusBadRequest,
			wantCode:   errorCodeValidation,
		},
		{
			name:       "past date",
			request:    createReservationRequest{MenuOfferingID: offering.ID, Date: "2025-03-01", PaymentMethod: "cash"},
			wantStatus: http.StatusBadRequest,
			wantCode:   errorCodeValidation,
		},
		{
			name:       "unknown offering",
			request:    createReservationRequest{MenuOfferingID: "missing", Date: "2025-03-12", PaymentMethod: "cash"},
			wantStatus: http.StatusNotFound,
			wantCode:   errorCodeNotFound,
		},
	}
	for _, testCase := range testCases {
		recorder, envelope := server.do(t, http.MethodPost, "/api/v1/reservations", testCase.request, studentCookie)
		if recorder.Code != testCase.wantStatus || envelope.Error == nil || envelope.Error.Code != testCase.wantCode {
			t.Fatalf("%s: got %d %s", testCase.name, recorder.Code, recorder.Body.String())
		}
	}
}

func TestSessionScopesAreEnforced(t *testing.T) {
	server := newTestServer(t)
	studentCookie := server.registerStudent(t, "STU300")
	adminCookie := server.loginAdmin(t)

	recorder, _ := server.do(t, http.MethodGet, "/api/v1/wallet", nil, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", recorder.Code)
	}
	recorder, _ = server.do(t, http.MethodGet, "/api/v1/admin/menus", nil, studentCookie)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student on admin route, got %d", recorder.Code)
	}
	recorder, _ = server.do(t, http.MethodGet, "/api/v1/wallet", nil, adminCookie)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin on student route, got %d", recorder.Code)
	}

	recorder, _ = server.do(t, http.MethodPost, "/api/v1/student/login", studentLoginRequest{StudentNumber: "STU300", Password: "wrong-password"}, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", recorder.Code)
	}

	recorder, _ = server.do(t, http.MethodPost, "/api/v1/student/logout", nil, studentCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("logout: %d", recorder.Code)
	}
	cleared := false
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == server.cfg.SessionCookieName && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected logout to clear the session cookie")
	}

	recorder, envelope := server.do(t, http.MethodGet, "/api/v1/wallet", nil, studentCookie)
	if recorder.Code != http.StatusUnauthorized || envelope.Error == nil || envelope.Error.Code != errorCodeUnauthorized {
		t.Fatalf("expected logged-out token to be rejected, got %d %s", recorder.Code, recorder.Body.String())
	}
	freshCookie := server.loginStudent(t, "STU300")
	if recorder, _ := server.do(t, http.MethodGet, "/api/v1/wallet", nil, freshCookie); recorder.Code != http.StatusOK {
		t.Fatalf("expected a new login to work after logout, got %d", recorder.Code)
	}
}

func TestRevocationListForgetsExpiredTokens(t *testing.T) {
	list := newRevocationList()
	now := time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)
	list.revoke("token-a", now.Add(time.Hour), now)
	list.revoke("", now.Add(time.Hour), now)
	if !list.isRevoked("token-a", now.Add(time.Minute)) {
		t.Fatalf("expected token-a to be revoked")
	}
	if list.isRevoked("token-b", now) || list.isRevoked("", now) {
		t.Fatalf("unexpected revocation")
	}
	if list.isRevoked("token-a", now.Add(2*time.Hour)) {
		t.Fatalf("expected expired revocation to be dropped")
	}
	if len(list.revoked) != 0 {
		t.Fatalf("expected revocation list to be empty, got %d", len(list.revoked))
	}
}

func TestDeletedStudentLosesSession(t *testing.T) {
	server := newTestServer(t)
	studentCookie := server.registerStudent(t, "STU400")
	adminCookie := server.loginAdmin(t)

	recorder, envelope := server.do(t, http.MethodGet, "/api/v1/admin/students?search=stu400", nil, adminCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list students: %d", recorder.Code)
	}
	students := decodeData[[]studentPayload](t, envelope)
	if len(students) != 1 {
		t.Fatalf("expected one student, got %d", len(students))
	}

	recorder, _ = server.do(t, http.MethodDelete, "/api/v1/admin/students/"+students[0].ID, nil, adminCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("delete student: %d %s", recorder.Code, recorder.Body.String())
	}
	recorder, envelope = server.do(t, http.MethodGet, "/api/v1/wallet", nil, studentCookie)
	if recorder.Code != http.StatusForbidden || envelope.Error == nil || envelope.Error.Code != errorCodeStudentInactive {
		t.Fatalf("expected inactive student to be rejected, got %d %s", recorder.Code, recorder.Body.String())
	}

	recorder, _ = server.do(t, http.MethodPost, "/api/v1/admin/students/"+students[0].ID+"/restore", nil, adminCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("restore student: %d", recorder.Code)
	}
	recorder, _ = server.do(t, http.MethodGet, "/api/v1/wallet", nil, studentCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected restored student to regain access, got %d", recorder.Code)
	}
}

func TestFeedbackAndStatisticsOverHTTP(t *testing.T) {
	server := newTestServer(t)
	adminCookie := server.loginAdmin(t)
	offering := server.createMenu(t, adminCookie)
	studentCookie := server.registerStudent(t, "STU500")

	recorder, envelope := server.do(t, http.MethodPost, "/api/v1/feedback", feedbackRequest{
		MenuOfferingID: offering.ID,
		Rating:         5,
		Category:       "taste",
		Comment:        "Delicious",
	}, studentCookie)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("feedback: status %d body %s", recorder.Code, recorder.Body.String())
	}
	if feedback := decodeData[feedbackPayload](t, envelope); feedback.Sentiment != "positive" {
		t.Fatalf("unexpected feedback %+v", feedback)
	}

	recorder, envelope = server.do(t, http.MethodGet, "/api/v1/points", nil, studentCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("points: %d", recorder.Code)
	}
	if points := decodeData[pointsPayload](t, envelope); points.Points != 10 || len(points.Transactions) != 1 || points.Transactions[0].Reason != "feedback" {
		t.Fatalf("unexpected points %+v", points)
	}

	recorder, envelope = server.do(t, http.MethodGet, "/api/v1/admin/feedback/statistics?from=2025-03-01&to=2025-03-31", nil, adminCookie)
	if recorder.Code != http.StatusOK {
		t.Fatalf("feedback statistics: %d %s", recorder.Code, recorder.Body.String())
	}
	statistics := decodeData[feedbackStatisticsPayload](t, envelope)
	if statistics.Total != 1 || statistics.AverageRating != 5 || statistics.ByCategory["taste"].Count != 1 {
		t.Fatalf("unexpected statistics %+v", statistics)
	}

	recorder, _ = server.do(t, http.MethodGet, "/api/v1/admin/reservations/statistics?from=2025-03-31&to=2025-03-01", nil, adminCookie)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected inverted range to be rejected, got %d", recorder.Code)
	}
}

func TestConfigValidateAppliesDefaults(t *testing.T) {
	cfg := Config{SessionSigningKey: "key"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr || cfg.SessionCookieName != defaultSessionCookie || cfg.RequestTimeout != defaultRequestTimeout {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := (&Config{}).Validate(); err == nil {
		t.Fatalf("expected missing signing key to fail")
	}
	origins := ParseAllowedOrigins(" http://a.example , ,http://b.example")
	if len(origins) != 2 || origins[1] != "http://b.example" {
		t.Fatalf("unexpected origins %v", origins)
	}
}
