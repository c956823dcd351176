package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/chefos/chefos-backend/pkg/database"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container and applies migrations.
// Call this in TestMain to set up shared test infrastructure.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    if !testutil.IntegrationEnabled() {
//	        os.Exit(m.Run())
//	    }
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(context.Background())
//	    os.Exit(code)
//	}
//
//	func TestSomething(t *testing.T) {
//	    org := suite.SetupOrg(t, ctx, "Bistro")
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        database.Wrap(db, log),
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
		if containerErr != nil {
			return
		}
		containerErr = globalContainer.Migrate(ctx, globalDB)
	})

	return globalContainer, globalDB, containerErr
}

// SetupOrg seeds an organization with one location, one supplier item and one
// preparation. Rows are removed when the test ends; organizations cascade.
func (s *IntegrationSuite) SetupOrg(t *testing.T, ctx context.Context, name string) *TestOrg {
	t.Helper()

	org, err := s.Fixtures.SeedOrg(ctx, s.RawDB, name)
	if err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}

	t.Cleanup(func() {
		if _, err := s.RawDB.ExecContext(context.Background(), "DELETE FROM organizations WHERE id = $1", org.ID); err != nil {
			t.Logf("warning: failed to drop organization %s: %v", org.ID, err)
		}
	})

	return org
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// IntegrationEnabled reports whether container backed tests should run.
// Set CHEFOS_SKIP_INTEGRATION to disable them without -short.
func IntegrationEnabled() bool {
	return os.Getenv("CHEFOS_SKIP_INTEGRATION") == ""
}

