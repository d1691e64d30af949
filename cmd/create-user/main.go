package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/linguahub/quiz-backend/internal/config"
	"github.com/linguahub/quiz-backend/internal/database"
	"github.com/linguahub/quiz-backend/internal/logger"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/repository"
	"github.com/linguahub/quiz-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	roleFlag := flag.String("role", string(model.RoleInstructor), "role of the new account: student, instructor or admin")
	flag.Parse()

	role := model.Role(*roleFlag)
	if !role.Valid() {
		fmt.Printf("Error: unknown role %q\n", *roleFlag)
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	// Account creation never touches the token denylist, so no Redis client.
	authService := service.NewAuthService(cfg, repository.NewUserRepository(pool), nil, log)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("=== Create New %s Account ===\n", strings.ToUpper(string(role[:1]))+string(role[1:]))

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println()
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	user, err := authService.CreateUser(ctx, name, email, password, role)
	if errors.Is(err, service.ErrEmailTaken) {
		fmt.Printf("Error: an account with email %s already exists\n", email)
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %s\n", user.Role, user.Name, user.Email, user.ID)
}
