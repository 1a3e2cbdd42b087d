package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pawchat/backend/internal/chat"
	"pawchat/backend/internal/models"
	"pawchat/backend/internal/storage"

	"github.com/lib/pq"
	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document accepted by `admin seed`.
type Fixtures struct {
	Profiles []struct {
		UserID      string   `yaml:"user_id"`
		DisplayName string   `yaml:"display_name"`
		Email       string   `yaml:"email"`
		Pets        []string `yaml:"pets"`
	} `yaml:"profiles"`
	Bookings []struct {
		ID       string    `yaml:"id"`
		PetName  string    `yaml:"pet_name"`
		StartsAt time.Time `yaml:"starts_at"`
		EndsAt   time.Time `yaml:"ends_at"`
		Status   string    `yaml:"status"`
	} `yaml:"bookings"`
	Conversations []struct {
		Participants []string `yaml:"participants"`
		Booking      string   `yaml:"booking"`
		Messages     []struct {
			From string `yaml:"from"`
			Body string `yaml:"body"`
		} `yaml:"messages"`
	} `yaml:"conversations"`
}

type seedReport struct {
	Profiles, Bookings, Conversations, Messages int
}

func loadFixtures(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFixtures(raw)
}

func parseFixtures(raw []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, c := range f.Conversations {
		if len(c.Participants) != 2 {
			return nil, fmt.Errorf("conversation %d: expected 2 participants, got %d", i, len(c.Participants))
		}
	}
	return &f, nil
}

// seed writes the fixtures. Re-running it reuses existing conversations but
// appends the messages again.
func seed(ctx context.Context, s storage.Storage, svc *chat.Service, f *Fixtures) (seedReport, error) {
	var report seedReport
	for _, p := range f.Profiles {
		profile := &models.Profile{UserID: p.UserID, DisplayName: p.DisplayName, Email: p.Email, PetNames: pq.StringArray(p.Pets)}
		if err := s.SaveProfile(ctx, profile); err != nil {
			return report, fmt.Errorf("profile %s: %w", p.UserID, err)
		}
		report.Profiles++
	}
	for _, b := range f.Bookings {
		status := b.Status
		if status == "" {
			status = "confirmed"
		}
		booking := &models.Booking{ID: b.ID, PetName: b.PetName, StartsAt: b.StartsAt, EndsAt: b.EndsAt, Status: status}
		if err := s.SaveBooking(ctx, booking); err != nil {
			return report, fmt.Errorf("booking %s: %w", b.ID, err)
		}
		report.Bookings++
	}
	for _, c := range f.Conversations {
		var ref *string
		if c.Booking != "" {
			ref = &c.Booking
		}
		id, err := svc.FindOrCreateConversation(ctx, c.Participants[0], c.Participants[1], ref)
		if err != nil {
			return report, fmt.Errorf("conversation %v: %w", c.Participants, err)
		}
		report.Conversations++
		for _, m := range c.Messages {
			if _, err := svc.AppendMessage(ctx, id, m.From, m.Body); err != nil {
				return report, fmt.Errorf("message in %s from %s: %w", id, m.From, err)
			}
			report.Messages++
		}
	}
	return report, nil
}
