package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/servicehub/booking-backend/internal/config"
	"github.com/servicehub/booking-backend/internal/utils"
	"github.com/servicehub/booking-backend/pkg/jwt"
)

// Prints a fresh JWT_SECRET, or with -admin-token mints an operator token for
// the reconciliation alert API using the configured secret.
func main() {
	adminToken := flag.Bool("admin-token", false, "mint an admin access token instead of a secret")
	userID := flag.String("user", "", "operator user ID (random when empty)")
	email := flag.String("email", "", "operator email")
	ttl := flag.Duration("ttl", 8*time.Hour, "admin token lifetime")
	flag.Parse()

	if *adminToken {
		mintAdminToken(*userID, *email, *ttl)
		return
	}

	secret, err := utils.GenerateSecret(32)
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("Add this to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)
	fmt.Println()
	fmt.Println("Keep it out of version control.")
}

func mintAdminToken(rawUserID, email string, ttl time.Duration) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	id := uuid.New()
	if rawUserID != "" {
		if id, err = uuid.Parse(rawUserID); err != nil {
			log.Fatalf("Invalid user ID: %v", err)
		}
	}

	service := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, ttl)
	token, err := service.GenerateAccessToken(id, email, []string{jwt.RoleAdmin})
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}

	fmt.Printf("user_id=%s expires_in=%s\n", id, ttl)
	fmt.Println(token)
}
