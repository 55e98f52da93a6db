// Package main seeds the database with a sample catalog and reader accounts
// for local development.
//
// Books that already exist are left alone, so the tool can run repeatedly.
// Arguments after "--" are passed to the server configuration loader.
//
// Usage:
//
//	go run ./cmd/seed
//	go run ./cmd/seed -readers 10 -- --db-driver badger
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"

	"github.com/books-manager/books-manager-server/internal/auth"
	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/di/providers"
	domainerrors "github.com/books-manager/books-manager-server/internal/errors"
	"github.com/books-manager/books-manager-server/internal/logger"
	"github.com/books-manager/books-manager-server/internal/search"
	"github.com/books-manager/books-manager-server/internal/service"
	"github.com/books-manager/books-manager-server/internal/validation"
)

var readers = flag.Int("readers", 5, "Number of reader accounts to create")

// readerPassword is shared by every seeded reader.
const readerPassword = "reader.pass1"

var catalog = []service.AddBookRequest{
	{ISBN: "9787111213826", Name: "Java编程思想", Author: "Bruce Eckel", Publisher: "机械工业出版社", Stock: 5},
	{ISBN: "9787115428028", Name: "Python编程从入门到实践", Author: "Eric Matthes", Publisher: "人民邮电出版社", Stock: 8},
	{ISBN: "9787111544937", Name: "深入理解计算机系统", Author: "Randal Bryant", Publisher: "机械工业出版社", Stock: 3},
	{ISBN: "9780134190440", Name: "The Go Programming Language", Author: "Alan Donovan", Publisher: "Addison-Wesley", Stock: 4},
	{ISBN: "9780261103344", Name: "The Hobbit", Author: "J.R.R. Tolkien", Publisher: "HarperCollins", Stock: 2},
	{ISBN: "9780201633610", Name: "Design Patterns", Author: "Erich Gamma", Publisher: "Addison-Wesley", Stock: 6},
	{ISBN: "9787302423287", Name: "数据结构", Author: "严蔚敏", Publisher: "清华大学出版社", Stock: 10},
	{ISBN: "9780262033848", Name: "Introduction to Algorithms", Author: "Thomas Cormen", Publisher: "MIT Press", Stock: 1},
}

func main() {
	flag.Parse()

	cfg, err := config.Load(flag.Args())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	lg := logger.New(logger.Config{Level: "warn", Environment: cfg.App.Environment})

	ctx := context.Background()

	fmt.Printf("Opening %s database\n", cfg.Database.Driver)
	st, err := providers.OpenStore(ctx, cfg.Database, lg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	// The server rebuilds its index from the store on start.
	index, err := search.Open(search.Options{InMemory: true})
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer index.Close()

	key, err := auth.LoadOrGenerateKey(cfg.App.DataDir)
	if err != nil {
		log.Fatalf("Failed to load token key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, cfg.Auth.TokenDuration)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	validator := validation.New()
	books := service.NewCatalogService(st, index, validator, lg.Logger)
	users := service.NewUserService(st, tokens, auth.NewPasswordHasher(auth.DefaultArgon2Params), validator, lg.Logger)

	if err := users.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	added := 0
	for _, req := range catalog {
		_, err := books.AddBook(ctx, req)
		switch {
		case err == nil:
			added++
		case errors.Is(err, domainerrors.ErrBookAlreadyExists):
		default:
			log.Fatalf("Failed to add %s: %v", req.ISBN, err)
		}
	}
	fmt.Printf("Added %d of %d books\n", added, len(catalog))

	created := 0
	for n := 1; n <= *readers; n++ {
		_, err := users.Register(ctx, service.RegisterRequest{
			Username: fmt.Sprintf("reader%d", n),
			Password: readerPassword,
			SID:      fmt.Sprintf("2024%08d", n),
			Email:    fmt.Sprintf("reader%d@example.com", n),
			Age:      strconv.Itoa(18 + rand.IntN(10)),
			Sex:      []string{"male", "female", "unknown"}[rand.IntN(3)],
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, domainerrors.ErrUserAlreadyExists):
		default:
			log.Fatalf("Failed to create reader %d: %v", n, err)
		}
	}
	fmt.Printf("Created %d readers (password %q)\n", created, readerPassword)
}
