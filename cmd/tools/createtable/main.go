package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	sql := `
	CREATE TABLE IF NOT EXISTS products (
	  id CHAR(36) NOT NULL,
	  title VARCHAR(255) NOT NULL,
	  price_cents INT NOT NULL,
	  stock INT NOT NULL DEFAULT 0,
	  is_active TINYINT(1) NOT NULL DEFAULT 1,
	  currency CHAR(3) NOT NULL DEFAULT 'BRL',
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS product_variants (
	  id CHAR(36) NOT NULL,
	  product_id CHAR(36) NOT NULL,
	  sku VARCHAR(64) NOT NULL,
	  price_cents INT NULL,
	  stock INT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_product_variants_product_id (product_id),
	  CONSTRAINT fk_product_variants_product FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS payment_methods (
	  id CHAR(36) NOT NULL,
	  name VARCHAR(64) NOT NULL,
	  type VARCHAR(32) NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS discounts (
	  id CHAR(36) NOT NULL,
	  code VARCHAR(64) NOT NULL,
	  type VARCHAR(16) NOT NULL,
	  value INT NOT NULL,
	  max_discount_cents INT NULL,
	  active TINYINT(1) NOT NULL DEFAULT 1,
	  starts_at DATETIME(3) NOT NULL,
	  ends_at DATETIME(3) NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_discounts_code (code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS addresses (
	  id CHAR(36) NOT NULL,
	  user_id CHAR(36) NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_addresses_user_id (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS sessions (
	  id CHAR(36) NOT NULL,
	  user_id CHAR(36) NOT NULL,
	  email VARCHAR(255) NOT NULL,
	  expires_at DATETIME(3) NOT NULL,
	  created_at DATETIME(3) NOT NULL,
	  updated_at DATETIME(3) NOT NULL,
	  last_seen_at DATETIME(3) NOT NULL,
	  PRIMARY KEY (id),
	  KEY ix_sessions_user_id (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS orders (
	  id CHAR(36) NOT NULL,
	  order_number VARCHAR(32) NOT NULL,
	  status VARCHAR(32) NOT NULL,
	  total_cents INT NOT NULL,
	  discount_cents INT NOT NULL,
	  shipping_cents INT NOT NULL,
	  final_cents INT NOT NULL,
	  currency CHAR(3) NOT NULL DEFAULT 'BRL',
	  user_id CHAR(36) NOT NULL,
	  shipping_address_id CHAR(36) NOT NULL,
	  billing_address_id CHAR(36) NULL,
	  payment_method_id CHAR(36) NOT NULL,
	  discount_id CHAR(36) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  paid_at DATETIME(3) NULL,
	  shipped_at DATETIME(3) NULL,
	  delivered_at DATETIME(3) NULL,
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_orders_order_number (order_number),
	  KEY ix_orders_user_id (user_id),
	  CONSTRAINT fk_orders_shipping_address FOREIGN KEY (shipping_address_id) REFERENCES addresses(id) ON DELETE RESTRICT,
	  CONSTRAINT fk_orders_payment_method FOREIGN KEY (payment_method_id) REFERENCES payment_methods(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS order_items (
	  id CHAR(36) NOT NULL,
	  order_id CHAR(36) NOT NULL,
	  product_id CHAR(36) NOT NULL,
	  variant_id CHAR(36) NULL,
	  title VARCHAR(255) NOT NULL,
	  quantity INT NOT NULL,
	  unit_price_cents INT NOT NULL,
	  final_unit_price_cents INT NOT NULL,
	  line_total_cents INT NOT NULL,
	  discount_applied DOUBLE NOT NULL DEFAULT 0,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_order_items_order_id (order_id),
	  KEY ix_order_items_product_id (product_id),
	  CONSTRAINT fk_order_items_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
	  CONSTRAINT fk_order_items_product FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS payments (
	  id CHAR(36) NOT NULL,
	  order_id CHAR(36) NOT NULL,
	  user_id CHAR(36) NOT NULL,
	  product_id CHAR(36) NOT NULL,
	  payment_method_id CHAR(36) NOT NULL,
	  payer_email VARCHAR(255) NOT NULL,
	  amount_cents INT NOT NULL,
	  currency CHAR(3) NOT NULL DEFAULT 'BRL',
	  status VARCHAR(32) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  transaction_id VARCHAR(128) NULL,
	  metadata JSON NULL,
	  error_message VARCHAR(255) NULL,
	  expires_at DATETIME(3) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_payments_transaction_id (transaction_id),
	  KEY ix_payments_order_id (order_id),
	  KEY ix_payments_user_id (user_id),
	  CONSTRAINT fk_payments_order FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS provider_events (
	  id CHAR(36) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  event_id VARCHAR(128) NOT NULL,
	  event_type VARCHAR(64) NOT NULL,
	  payload_json JSON NOT NULL,
	  received_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  processed_at DATETIME(3) NULL,
	  process_error VARCHAR(255) NULL,
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_provider_events_provider_event (provider, event_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := sqlDB.Exec(sql); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("✓ tables created successfully")
}
