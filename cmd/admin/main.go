package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/config"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"

	"github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: add-profile, add-booking, seed, conversations")
		os.Exit(1)
	}

	storageSvc, err := storage.Open(cfg.PostgresDSN, nil) // No redis needed for admin CLI
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	ctx := context.Background()

	command := os.Args[1]

	switch command {
	case "add-profile":
		if len(os.Args) < 4 {
			fmt.Println("Usage: admin add-profile <user_id> <display_name> [email] [pet1,pet2]")
			os.Exit(1)
		}
		profile := &models.Profile{UserID: os.Args[2], DisplayName: os.Args[3]}
		if len(os.Args) > 4 {
			profile.Email = os.Args[4]
		}
		if len(os.Args) > 5 {
			profile.PetNames = pq.StringArray(strings.Split(os.Args[5], ","))
		}
		if err := storageSvc.SaveProfile(ctx, profile); err != nil {
			log.Fatalf("Error saving profile: %v", err)
		}
		fmt.Printf("Profile %s saved.\n", profile.UserID)
	case "add-booking":
		if len(os.Args) < 6 {
			fmt.Println("Usage: admin add-booking <booking_id> <pet_name> <starts_at RFC3339> <ends_at RFC3339> [status]")
			os.Exit(1)
		}
		booking, err := parseBooking(os.Args[2:])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if err := storageSvc.SaveBooking(ctx, booking); err != nil {
			log.Fatalf("Error saving booking: %v", err)
		}
		fmt.Printf("Booking %s saved.\n", booking.ID)
	case "seed":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin seed <fixtures.yaml>")
			os.Exit(1)
		}
		fixtures, err := loadFixtures(os.Args[2])
		if err != nil {
			log.Fatalf("Error reading fixtures: %v", err)
		}
		svc := chat.NewService(storageSvc, nil, nil, nil)
		report, err := seed(ctx, storageSvc, svc, fixtures)
		if err != nil {
			log.Fatalf("Error seeding: %v", err)
		}
		fmt.Printf("Seeded %d profiles, %d bookings, %d conversations, %d messages.\n",
			report.Profiles, report.Bookings, report.Conversations, report.Messages)
	case "conversations":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin conversations <user_id>")
			os.Exit(1)
		}
		svc := chat.NewService(storageSvc, nil, nil, nil)
		summaries, err := svc.ListConversations(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Error listing conversations: %v", err)
		}
		for _, s := range summaries {
			last := "-"
			if s.LastMessage != nil {
				last = s.LastMessage.Body
			}
			fmt.Printf("%s  %-20s unread=%d  %s\n", s.Conversation.ID, s.Other.DisplayName, s.UnreadCount, last)
		}
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func parseBooking(args []string) (*models.Booking, error) {
	startsAt, err := time.Parse(time.RFC3339, args[2])
	if err != nil {
		return nil, fmt.Errorf("invalid starts_at: %w", err)
	}
	endsAt, err := time.Parse(time.RFC3339, args[3])
	if err != nil {
		return nil, fmt.Errorf("invalid ends_at: %w", err)
	}
	if endsAt.Before(startsAt) {
		return nil, fmt.Errorf("ends_at is before starts_at")
	}
	status := "confirmed"
	if len(args) > 4 {
		status = args[4]
	}
	return &models.Booking{ID: args[0], PetName: args[1], StartsAt: startsAt, EndsAt: endsAt, Status: status}, nil
}
