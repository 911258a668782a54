package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/agrilink/backend-agrilink/internal/app"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	userIDs := seedUsers(db)
	catIDs := seedCategories(db)
	seedProducts(db, userIDs, catIDs)

	log.Println("Seeding completed successfully!")
}

func seedUsers(db *sql.DB) map[string]string {
	users := []struct {
		Username string
		Email    string
		Phone    string
		Type     string
	}{
		{"mang_tonyo", "tonyo@agrilink.ph", "+639171234001", "farmer"},
		{"aling_nena", "nena@agrilink.ph", "+639171234002", "farmer"},
		{"ka_pedro", "pedro@agrilink.ph", "+639171234003", "farmer"},
		{"bb_clara", "clara@agrilink.ph", "+639171234004", "both"},
		{"juan_buyer", "juan@example.com", "+639171234005", "buyer"},
		{"maria_buyer", "maria@example.com", "+639171234006", "buyer"},
		{"resto_kusina", "kusina@example.com", "+639171234007", "buyer"},
	}

	hash, err := app.HashPassword("password123")
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}

	fmt.Println("Seeding Users...")
	ids := make(map[string]string)
	for _, u := range users {
		_, err := db.Exec(`
			INSERT INTO users (username, email, password_hash, phone_number, user_type, is_verified)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (email) DO NOTHING;
		`, u.Username, u.Email, hash, u.Phone, u.Type)
		if err != nil {
			log.Printf("Failed to seed user %s: %v", u.Email, err)
			continue
		}
		var id string
		if err := db.QueryRow("SELECT id FROM users WHERE username = $1", u.Username).Scan(&id); err != nil {
			log.Printf("Failed to get ID for user %s: %v", u.Username, err)
			continue
		}
		ids[u.Username] = id
	}
	return ids
}

func seedCategories(db *sql.DB) map[string]string {
	categories := []struct {
		Name        string
		Description string
	}{
		{"Vegetables", "Fresh leafy greens and root crops"},
		{"Fruits", "Seasonal and year-round fruits"},
		{"Grains", "Rice, corn, and other cereal crops"},
		{"Root Crops", "Cassava, sweet potato, taro"},
		{"Herbs & Spices", "Culinary herbs and spices"},
		{"Livestock & Poultry", "Eggs, free-range chicken, and meat"},
		{"Fisheries", "Freshwater and marine catch"},
	}

	fmt.Println("Seeding Categories...")
	ids := make(map[string]string)
	for _, c := range categories {
		_, err := db.Exec(`
			INSERT INTO categories (name, description)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description;
		`, c.Name, c.Description)
		if err != nil {
			log.Printf("Failed to upsert category %s: %v", c.Name, err)
			continue
		}
		var id string
		if err := db.QueryRow("SELECT id FROM categories WHERE name = $1", c.Name).Scan(&id); err != nil {
			log.Printf("Failed to get ID for category %s: %v", c.Name, err)
			continue
		}
		ids[c.Name] = id
	}
	return ids
}

func seedProducts(db *sql.DB, userIDs, catIDs map[string]string) {
	products := []struct {
		Name        string
		Farmer      string
		Category    string
		Description string
		Price       float64
		Unit        string
		Stock       int
		Location    string
	}{
		{"Red Rice 5kg", "mang_tonyo", "Grains", "Heirloom red rice from the Cordillera terraces", 375.00, "sack", 40, "Ifugao"},
		{"Sweet Corn", "mang_tonyo", "Vegetables", "Freshly picked sweet corn, harvested daily", 25.00, "piece", 200, "Ifugao"},
		{"Carrots 1kg", "aling_nena", "Vegetables", "Benguet highland carrots, crisp and sweet", 85.00, "kg", 120, "Benguet"},
		{"Cabbage", "aling_nena", "Vegetables", "Wombok and round cabbage varieties", 55.00, "head", 90, "Benguet"},
		{"Saba Bananas", "ka_pedro", "Fruits", "Cooking bananas, perfect for turon and minatamis", 60.00, "bundle", 75, "Laguna"},
		{"Calamansi 1kg", "ka_pedro", "Fruits", "Juicy calamansi straight from the orchard", 70.00, "kg", 60, "Laguna"},
		{"Free-range Eggs", "bb_clara", "Livestock & Poultry", "Organic free-range eggs, tray of 30", 280.00, "tray", 35, "Batangas"},
		{"Tilapia", "bb_clara", "Fisheries", "Pond-raised tilapia, harvested to order", 120.00, "kg", 50, "Batangas"},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		farmerID, ok := userIDs[p.Farmer]
		if !ok {
			log.Printf("Skipping product %s: unknown farmer %s", p.Name, p.Farmer)
			continue
		}
		categoryID, ok := catIDs[p.Category]
		if !ok {
			log.Printf("Skipping product %s: unknown category %s", p.Name, p.Category)
			continue
		}
		_, err := db.Exec(`
			INSERT INTO products (farmer_id, category_id, name, description, price, unit, stock_quantity, location, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
			ON CONFLICT (farmer_id, name) DO UPDATE SET
				price = EXCLUDED.price,
				stock_quantity = EXCLUDED.stock_quantity,
				description = EXCLUDED.description;
		`, farmerID, categoryID, p.Name, p.Description, p.Price, p.Unit, p.Stock, p.Location)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
		}
	}
}
