//cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/config"
	"github.com/unclebandit/ngo-backoffice/internal/db"
	"github.com/unclebandit/ngo-backoffice/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	withSeed := flag.Bool("seed", true, "load sample data after migrating")
	flag.Parse()

	// The seeder never issues tokens.
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "unused")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Level, true)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	conn, err := db.Open(context.Background(), cfg.DB, zl)
	if err != nil {
		zl.Fatal("connect", zap.Error(err))
	}
	defer conn.Close()

	files := []string{"migrations/001_init.sql"}
	if *withSeed {
		files = append(files, "seed/subscribers.sql", "seed/collaborations.sql")
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			zl.Fatal("read file", zap.String("file", file), zap.Error(err))
		}
		if _, err := conn.Exec(string(content)); err != nil {
			zl.Fatal("execute file", zap.String("file", file), zap.Error(err))
		}
		fmt.Printf("Applied: %s\n", file)
	}

	fmt.Println("Database setup completed successfully!")
}
