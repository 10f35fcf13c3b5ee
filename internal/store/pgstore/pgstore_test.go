package pgstore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/canteen/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const testDSNEnv = "CANTEEN_TEST_POSTGRES_DSN"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	if err := gormstore.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return New(pool)
}

func newTestService(t *testing.T, store *Store) *restaurant.Service {
	t.Helper()
	service, err := restaurant.NewService(store, func() time.Time { return time.Now().UTC() }, restaurant.WithPasswordCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestReservationRoundTripOnPostgres(t *testing.T) {
	store := openTestStore(t)
	service := newTestService(t, store)
	ctx := context.Background()

	student, err := service.CreateStudent(ctx, restaurant.StudentEnrollment{
		StudentRegistration: restaurant.StudentRegistration{
			Number:   "PG" + uuid.NewString()[:8],
			Name:     "Postgres Student",
			Email:    uuid.NewString() + "@example.edu",
			Password: "correct horse",
		},
		InitialWallet: 1000,
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	offering, err := service.CreateOffering(ctx, restaurant.OfferingInput{
		Weekday:    restaurant.WeekdayWednesday,
		MealSlot:   restaurant.MealSlotLunch,
		Title:      "Lentil soup",
		Tags:       []string{"vegan"},
		PriceCents: 350,
	})
	if err != nil {
		t.Fatalf("create offering: %v", err)
	}

	reservation, err := service.CreateReservation(ctx, student.ID, offering.ID, service.Today(), restaurant.PaymentMethodWallet)
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	reloaded, err := store.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("get student: %v", err)
	}
	if reloaded.WalletBalance != 650 {
		t.Fatalf("expected balance 650, got %d", reloaded.WalletBalance)
	}

	if _, err := service.CancelReservation(ctx, student.ID, reservation.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := service.CancelReservation(ctx, student.ID, reservation.ID); !errors.Is(err, restaurant.ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
	transactions, err := store.ListWalletTransactions(ctx, student.ID, restaurant.NewPage(0, 0))
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(transactions) != 3 {
		t.Fatalf("expected 3 wallet rows, got %d", len(transactions))
	}
}

func TestConcurrentReservationsCannotOverdrawOnPostgres(t *testing.T) {
	store := openTestStore(t)
	service := newTestService(t, store)
	ctx := context.Background()

	student, err := service.CreateStudent(ctx, restaurant.StudentEnrollment{
		StudentRegistration: restaurant.StudentRegistration{
			Number:   "PG" + uuid.NewString()[:8],
			Name:     "Racing Student",
			Email:    uuid.NewString() + "@example.edu",
			Password: "correct horse",
		},
		InitialWallet: 500,
	})
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	offering, err := service.CreateOffering(ctx, restaurant.OfferingInput{
		Weekday:    restaurant.WeekdayThursday,
		MealSlot:   restaurant.MealSlotDinner,
		Title:      "Chorba",
		PriceCents: 350,
	})
	if err != nil {
		t.Fatalf("create offering: %v", err)
	}

	const attempts = 4
	start := make(chan struct{})
	results := make(chan error, attempts)
	var waitGroup sync.WaitGroup
	for attempt := 0; attempt < attempts; attempt++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			<-start
			_, err := service.CreateReservation(ctx, student.ID, offering.ID, service.Today(), restaurant.PaymentMethodWallet)
			results <- err
		}()
	}
	close(start)
	waitGroup.Wait()
	close(results)

	var successes, insufficient int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, restaurant.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || insufficient != attempts-1 {
		t.Fatalf("expected one success and %d rejections, got %d and %d", attempts-1, successes, insufficient)
	}
	reloaded, err := store.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("get student: %v", err)
	}
	if reloaded.WalletBalance != 150 {
		t.Fatalf("expected balance 150, got %d", reloaded.WalletBalance)
	}
	transactions, err := store.ListWalletTransactions(ctx, student.ID, restaurant.NewPage(0, 0))
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("expected opening credit and one debit, got %d rows", len(transactions))
	}
}

func TestConditionsNumberPlaceholders(t *testing.T) {
	where := newConditions()
	where.add("deleted_at is null")
	where.add("status = %s", "confirmed")
	where.add("(name like %[1]s or email like %[1]s)", "%a%")
	paging := where.page(restaurant.Page{Limit: 5, Offset: 10})

	if got, want := where.sql(), " where deleted_at is null and status = $1 and (name like $2 or email like $2)"; got != want {
		t.Fatalf("unexpected where clause:\n got %q\nwant %q", got, want)
	}
	if paging != " limit $3 offset $4" {
		t.Fatalf("unexpected paging %q", paging)
	}
	if len(where.arguments) != 4 {
		t.Fatalf("expected 4 arguments, got %d", len(where.arguments))
	}
}
