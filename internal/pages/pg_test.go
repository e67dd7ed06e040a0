package pages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pagetrail/pagetrail/internal/domain"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbUser := os.Getenv("TEST_DB_USER")
	dbPassword := os.Getenv("TEST_DB_PASSWORD")
	dbName := os.Getenv("TEST_DB_NAME")

	var dsn string
	var err error

	if dbHost != "" {
		// Use external database
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)

		fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
	} else {
		// Start a PostgreSQL container for testing
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Printf("Started PostgreSQL container\n")
	}

	// Connect to the database
	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	// Initialize the database schema
	err = initializeTestDatabase(testDB)
	if err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	// Run tests
	code := m.Run()

	// Cleanup
	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}

	os.Exit(code)
}

// initializeTestDatabase runs the schema initialization SQL
func initializeTestDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	schemaPath := filepath.Join("..", "..", "db", "init_pg_db.sql")
	schemaSQL, err := os.ReadFile(schemaPath) //nolint:gosec,G304
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	_, err = sqlDB.Exec(string(schemaSQL))
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// initPGRepository creates a transaction-scoped repository with a small page
// tree: /products with children /products/widgets (localized "geraete" in
// language 7) and a system page /products/admin.
func initPGRepository(t *testing.T) (*PGRepository, map[string]int64) {
	tx := testDB.Begin()
	require.NotNil(t, tx)
	require.NoError(t, tx.Error)

	t.Cleanup(func() {
		tx.Rollback()
	})

	ids := make(map[string]int64)
	insert := func(key string, parent int64, system bool, names map[domain.LanguageID]string) {
		row := pageRow{
			ParentID:       parent,
			TemplateSystem: system,
			CreatedAt:      time.Now().Add(-time.Hour),
		}
		require.NoError(t, tx.Create(&row).Error)
		for lang, name := range names {
			require.NoError(t, tx.Create(&pageNameRow{
				PagesID:    row.ID,
				LanguageID: lang,
				Name:       name,
			}).Error)
		}
		ids[key] = row.ID
	}

	insert("products", 0, false, map[domain.LanguageID]string{domain.DefaultLanguage: "products"})
	insert("widgets", ids["products"], false, map[domain.LanguageID]string{
		domain.DefaultLanguage: "widgets",
		7:                      "geraete",
	})
	insert("admin", ids["products"], true, map[domain.LanguageID]string{domain.DefaultLanguage: "admin"})

	return NewPGRepository(tx), ids
}

func TestPGRepositoryGetByID(t *testing.T) {
	repo, ids := initPGRepository(t)
	ctx := context.Background()

	page, err := repo.GetByID(ctx, ids["widgets"])
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, ids["products"], page.ParentID)
	assert.Equal(t, "widgets", page.Name(domain.DefaultLanguage))
	assert.Equal(t, "geraete", page.Name(7))

	system, err := repo.GetByID(ctx, ids["admin"])
	require.NoError(t, err)
	require.NotNil(t, system)
	assert.True(t, system.Template.System)

	missing, err := repo.GetByID(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPGRepositoryPath(t *testing.T) {
	repo, ids := initPGRepository(t)
	ctx := context.Background()

	page, err := repo.GetByID(ctx, ids["widgets"])
	require.NoError(t, err)
	require.NotNil(t, page)

	path, err := repo.Path(ctx, page, domain.DefaultLanguage)
	require.NoError(t, err)
	assert.Equal(t, "/products/widgets", path)

	// Localized leaf name, default-language fallback for the parent
	localized, err := repo.Path(ctx, page, 7)
	require.NoError(t, err)
	assert.Equal(t, "/products/geraete", localized)
}

func TestPGRepositoryGetByPath(t *testing.T) {
	repo, ids := initPGRepository(t)
	ctx := context.Background()

	t.Run("default language", func(t *testing.T) {
		page, err := repo.GetByPath(ctx, "/products/widgets", nil)
		require.NoError(t, err)
		require.NotNil(t, page)
		assert.Equal(t, ids["widgets"], page.ID)
	})

	t.Run("localized path", func(t *testing.T) {
		page, err := repo.GetByPath(ctx, "/products/geraete", nil)
		require.NoError(t, err)
		require.NotNil(t, page)
		assert.Equal(t, ids["widgets"], page.ID)
	})

	t.Run("language restriction", func(t *testing.T) {
		language := domain.LanguageID(7)
		page, err := repo.GetByPath(ctx, "/products/widgets", &language)
		require.NoError(t, err)
		assert.Nil(t, page)
	})

	t.Run("unknown path", func(t *testing.T) {
		page, err := repo.GetByPath(ctx, "/products/gadgets", nil)
		require.NoError(t, err)
		assert.Nil(t, page)
	})
}

func TestPGRepositoryParent(t *testing.T) {
	repo, ids := initPGRepository(t)
	ctx := context.Background()

	page, err := repo.GetByID(ctx, ids["widgets"])
	require.NoError(t, err)
	require.NotNil(t, page)

	parent, err := repo.Parent(ctx, page)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, ids["products"], parent.ID)

	top, err := repo.Parent(ctx, parent)
	require.NoError(t, err)
	assert.Nil(t, top)
}
