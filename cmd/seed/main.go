package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopslot/booking-service/internal/availability"
	"github.com/shopslot/booking-service/internal/db"
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

	shopIDs, err := seedShops(context.Background(), pool, 20)
	if err != nil {
		log.Fatalf("seed shops: %v", err)
	}
	if err := seedProviders(context.Background(), pool, shopIDs, 100); err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedClients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed clients: %v", err)
	}

	log.Println("seed complete")
}

func seedShops(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d shops", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO shops (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, gofakeit.Company())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("shops seeded")
	return ids, nil
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, shopIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d providers", count)

	services := []string{
		"Haircut",
		"Beard Trim",
		"Manicure",
		"Massage",
		"Facial",
		"Color Treatment",
		"Waxing",
		"Consultation",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		providerID := uuid.New()
		shopID := shopIDs[gofakeit.Number(0, len(shopIDs)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO providers (id, shop_id, name, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, providerID, shopID, gofakeit.Name())
		if err != nil {
			return err
		}

		serviceName := services[gofakeit.Number(0, len(services)-1)]
		_, err = tx.Exec(ctx, `
			INSERT INTO services (id, shop_id, provider_id, name, duration_minutes, price, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, uuid.New(), shopID, providerID, serviceName,
			gofakeit.Number(2, 8)*15, gofakeit.Price(20, 200))
		if err != nil {
			return err
		}

		schedule, err := json.Marshal(randomSchedule())
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO provider_availability (provider_id, schedule, updated_at)
			VALUES ($1, $2, now())
		`, providerID, schedule)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("providers seeded")
	return nil
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d clients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("clients seeded: %d/%d", end, count)
	}

	log.Println("clients seeded")
	return nil
}

func randomSchedule() availability.WeeklySchedule {
	workday := func() availability.DaySchedule {
		openHour := gofakeit.Number(8, 10)
		closeHour := gofakeit.Number(16, 20)
		return availability.DaySchedule{
			Enabled: true,
			Intervals: []availability.Interval{
				{
					Start: clockString(openHour),
					End:   clockString(closeHour),
				},
			},
		}
	}

	ws := availability.WeeklySchedule{
		Monday:    workday(),
		Tuesday:   workday(),
		Wednesday: workday(),
		Thursday:  workday(),
		Friday:    workday(),
	}
	if gofakeit.Bool() {
		ws.Saturday = workday()
	}
	return ws
}

func clockString(hour int) string {
	return time.Date(0, 1, 1, hour, 0, 0, 0, time.UTC).Format("15:04")
}
