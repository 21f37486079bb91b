// Command seed-db loads demo data for local development: a test user,
// products from a JSON file, and a handful of vouchers and promotions.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/evermart/shop-api/internal/repository"
)

type productJSON struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    int32           `json:"stock"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		userEmail    string
		userPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&userEmail, "user-email", "demo@example.com", "email for the demo user")
	flag.StringVar(&userPassword, "user-password", "", "password for the demo user (or SHOP_SEED_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if userPassword == "" {
		userPassword = os.Getenv("SHOP_SEED_PASSWORD")
	}
	if userPassword == "" {
		slog.Error("demo user password is required: set --user-password or SHOP_SEED_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, userEmail, userPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, userEmail, userPassword string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedUser(ctx, pool, userEmail, userPassword); err != nil {
		return errors.Wrap(err, "seed user")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedVouchers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}

	if err := seedPromotions(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promotions")
	}

	return nil
}

func seedUser(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	slog.Info("seeding demo user", slog.String("email", email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, password_hash = EXCLUDED.password_hash, updated_at = now()`,
		"Demo User", email, string(hash),
	)
	return err
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (name, category, price, stock)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO UPDATE
			SET category = EXCLUDED.category, price = EXCLUDED.price,
			    stock = EXCLUDED.stock, updated_at = now()`,
			p.Name, p.Category, p.Price, p.Stock,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Name)
		}

		slog.Info("upserted product", slog.String("name", p.Name), slog.String("category", p.Category))
	}

	return nil
}

func seedVouchers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo vouchers")

	expiration := time.Now().AddDate(1, 0, 0)
	vouchers := []struct {
		code         string
		discountType string
		value        decimal.Decimal
		usageLimit   int32
		minOrder     *decimal.Decimal
	}{
		{"WELCOME10", "percentage", decimal.NewFromInt(10), 1000, nil},
		{"SAVE20", "fixed", decimal.NewFromInt(20), 500, ptr(decimal.NewFromInt(100))},
		{"HALFPRICE", "percentage", decimal.NewFromInt(80), 50, ptr(decimal.NewFromInt(50))},
	}

	for _, v := range vouchers {
		_, err := pool.Exec(ctx, `
			INSERT INTO vouchers (code, discount_type, discount_value, expiration_date, usage_limit, minimum_order_value)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (code) DO UPDATE
			SET discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
			    expiration_date = EXCLUDED.expiration_date, usage_limit = EXCLUDED.usage_limit,
			    minimum_order_value = EXCLUDED.minimum_order_value, updated_at = now()`,
			v.code, v.discountType, v.value, expiration, v.usageLimit, v.minOrder,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert voucher %s", v.code)
		}

		slog.Info("upserted voucher", slog.String("code", v.code))
	}

	return nil
}

func seedPromotions(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo promotions")

	expiration := time.Now().AddDate(0, 6, 0)
	promotions := []struct {
		code         string
		categories   []string
		discountType string
		value        decimal.Decimal
		usageLimit   int32
	}{
		{"PETWEEK", []string{"pet care"}, "percentage", decimal.NewFromInt(15), 2000},
		{"HOMEDEAL", []string{"furniture and decor", "household items"}, "fixed", decimal.NewFromInt(25), 300},
	}

	for _, p := range promotions {
		categories, err := json.Marshal(p.categories)
		if err != nil {
			return errors.Wrap(err, "marshal categories")
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO promotions (code, eligible_categories, discount_type, discount_value, expiration_date, usage_limit)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (code) DO UPDATE
			SET eligible_categories = EXCLUDED.eligible_categories, discount_type = EXCLUDED.discount_type,
			    discount_value = EXCLUDED.discount_value, expiration_date = EXCLUDED.expiration_date,
			    usage_limit = EXCLUDED.usage_limit, updated_at = now()`,
			p.code, categories, p.discountType, p.value, expiration, p.usageLimit,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert promotion %s", p.code)
		}

		slog.Info("upserted promotion", slog.String("code", p.code))
	}

	return nil
}

func ptr[T any](v T) *T { return &v }
