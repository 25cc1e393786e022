package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"clothingrental/internal/database"
	"clothingrental/internal/models"
	"clothingrental/internal/store"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type ItemsConfig struct {
	Items []models.Item `yaml:"items"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		itemsPath = flag.String("items", "configs/items.yaml", "path to items.yaml")
		dbPath    = flag.String("db", "./data/rental.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*itemsPath)
	if err != nil {
		return fmt.Errorf("read items: %w", err)
	}
	var cfg ItemsConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse items: %w", err)
	}
	if len(cfg.Items) == 0 {
		return fmt.Errorf("no items in yaml")
	}

	kv, err := database.NewSQLiteKV(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer kv.Close()
	st := store.New(kv, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	existing, err := st.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	byCode := make(map[string]models.Item, len(existing))
	for _, it := range existing {
		byCode[strings.ToLower(it.Code)] = it
	}

	created := 0
	updated := 0
	for _, it := range cfg.Items {
		if it.Name == "" || it.Code == "" {
			continue
		}
		if it.AdminStatus == "" {
			it.AdminStatus = models.AdminStatusAvailable
		}

		if prev, ok := byCode[strings.ToLower(it.Code)]; ok {
			it.ID = prev.ID
			it.CreatedAt = prev.CreatedAt
			if err = st.UpsertItem(ctx, it); err != nil {
				return fmt.Errorf("update %s: %w", it.Code, err)
			}
			updated++
			continue
		}

		it.ID = st.NewItemID()
		it.CreatedAt = time.Now().UTC()
		if err = st.UpsertItem(ctx, it); err != nil {
			return fmt.Errorf("create %s: %w", it.Code, err)
		}
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
