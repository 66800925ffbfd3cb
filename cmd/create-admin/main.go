package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"golang.org/x/crypto/bcrypt"

	"relief-tokens/internal/auth"
	"relief-tokens/internal/config"
	"relief-tokens/internal/models"
)

// Creates an admin account: go run ./cmd/create-admin <username> <password>
func main() {
	_ = godotenv.Load()

	if len(os.Args) != 3 {
		log.Fatal("usage: create-admin <username> <password>")
	}
	username, password := os.Args[1], os.Args[2]

	cfg := config.Load()
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.Database, cfg.Database.SSLMode)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer sqldb.Close()
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	store := &auth.DB{Bun: bunDB}
	admin, err := store.CreateAdmin(models.Admin{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	})
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.Printf("admin %s created (id %d)", admin.Username, admin.ID)
}
