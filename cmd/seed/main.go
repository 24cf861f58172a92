package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naminath/opd-booking/internal/auth"
	"github.com/naminath/opd-booking/internal/booking"
	"github.com/naminath/opd-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedAdmin(context.Background(), pool); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, 7); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool) error {
	email := getEnv("SEED_ADMIN_EMAIL", "admin@naminath.local")
	password := getEnv("SEED_ADMIN_PASSWORD", "changeme123")

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO admin_users (id, full_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (email) DO NOTHING
	`, uuid.New(), "Seed Admin", email, hash)
	if err != nil {
		return err
	}

	log.Printf("admin seeded email=%s", email)
	return nil
}

// seedAppointments books random rooms across the next `days` operating days,
// leaving plenty of free capacity for manual testing.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, days int) error {
	slots := booking.TimeSlots()
	statuses := []string{"pending", "pending", "confirmed", "confirmed", "cancelled"}

	total := 0
	for d := 1; d <= days; d++ {
		date := time.Now().AddDate(0, 0, d).Format("2006-01-02")

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for _, slot := range slots {
			// Fill up to 3 of the 5 rooms per slot
			count := gofakeit.Number(0, 3)
			for room := 1; room <= count; room++ {
				status := statuses[gofakeit.Number(0, len(statuses)-1)]
				email := gofakeit.Email()

				_, err := tx.Exec(ctx, `
					INSERT INTO appointments (id, name, phone, email, visit_date, slot_time, room,
						case_description, status, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
				`, uuid.New(), gofakeit.Name(), gofakeit.Phone(), email,
					date, slot, room, gofakeit.Sentence(8), status)
				if err != nil {
					_ = tx.Rollback(ctx)
					return fmt.Errorf("insert appointment %s %s room %d: %w", date, slot, room, err)
				}
				total++
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("appointments seeded for %s", date)
	}

	log.Printf("appointments seeded: %d", total)
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
