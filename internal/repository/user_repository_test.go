package repository

import (
	"context"
	"database/sql"
	"log"
	"testing"
	"time"

	"pos-register/internal/database"
	"pos-register/internal/domain"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	// The real schema, via the real migrations
	if err := database.RunMigrations(testDB, "../../migrations", zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func newTestUser(t *testing.T, email string) *domain.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	return &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test Cashier",
		PasswordHash: string(hashed),
		Role:         "cashier",
		Permissions:  []string{"sell", "refund"},
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestUserCreateAndFind(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := newTestUser(t, "cashier1@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if found.ID != user.ID || found.Name != user.Name {
		t.Errorf("Retrieved user differs: %+v", found)
	}
	if len(found.Permissions) != 2 || found.Permissions[0] != "sell" {
		t.Errorf("Permissions not round-tripped: %v", found.Permissions)
	}

	byID, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if byID.Email != user.Email {
		t.Errorf("FindByID returned wrong user: %+v", byID)
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := newTestUser(t, "dupe@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	again := newTestUser(t, "dupe@example.com")
	if err := repo.Create(ctx, again); err != ErrUserAlreadyExists {
		t.Fatalf("Expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestUserNotFound(t *testing.T) {
	repo := NewUserRepository(testDB)

	if _, err := repo.FindByEmail(context.Background(), "nobody@example.com"); err != ErrUserNotFound {
		t.Fatalf("Expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.FindByID(context.Background(), uuid.New()); err != ErrUserNotFound {
		t.Fatalf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestFailedLoginCounters(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()
	email := "lockme@example.com"

	for want := 1; want <= 3; want++ {
		got, err := repo.RecordFailedLogin(ctx, email)
		if err != nil {
			t.Fatalf("RecordFailedLogin failed: %v", err)
		}
		if got != want {
			t.Errorf("Failure %d recorded as %d", want, got)
		}
	}

	attempt, err := repo.FailedLogins(ctx, email)
	if err != nil {
		t.Fatalf("FailedLogins failed: %v", err)
	}
	if attempt.Failures != 3 {
		t.Errorf("Expected 3 failures, got %d", attempt.Failures)
	}

	if err := repo.ResetFailedLogins(ctx, email); err != nil {
		t.Fatalf("ResetFailedLogins failed: %v", err)
	}
	attempt, err = repo.FailedLogins(ctx, email)
	if err != nil {
		t.Fatalf("FailedLogins after reset failed: %v", err)
	}
	if attempt != nil && attempt.Failures != 0 {
		t.Errorf("Reset left %d failures", attempt.Failures)
	}
}
