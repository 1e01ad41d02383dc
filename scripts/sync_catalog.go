package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"riad/internal/config"
	"riad/internal/database"
	"riad/internal/export"
	"riad/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type CatalogConfig struct {
	RoomTypes []*models.RoomType `yaml:"room_types"`
	Rooms     []*models.Room     `yaml:"rooms"`
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
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/riad.db", "path to sqlite db")
		roomNumber  = flag.String("room", "", "room number whose status to change")
		roomStatus  = flag.String("status", "", "new room status: AVL, OCC, CLN, OOS")
		exportFrom  = flag.String("export-from", "", "export reservations from date (YYYY-MM-DD)")
		exportTo    = flag.String("export-to", "", "export reservations to date (YYYY-MM-DD)")
		exportDir   = flag.String("export-dir", "./exports", "directory for exported reports")
	)
	flag.Parse()

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *catalogPath != "" {
		if err := syncCatalog(ctx, db, *catalogPath); err != nil {
			return err
		}
	}

	if *roomNumber != "" {
		if err := setRoomStatus(ctx, db, *roomNumber, *roomStatus); err != nil {
			return err
		}
	}

	if *exportFrom != "" || *exportTo != "" {
		from, err := time.Parse(models.DateLayout, *exportFrom)
		if err != nil {
			return fmt.Errorf("parse export-from: %w", err)
		}
		to, err := time.Parse(models.DateLayout, *exportTo)
		if err != nil {
			return fmt.Errorf("parse export-to: %w", err)
		}
		path, err := export.NewExporter(db, *exportDir, &logger).ExportToFile(ctx, from, to)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Printf("report: %s\n", path)
	}
	return nil
}

func syncCatalog(ctx context.Context, db *database.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var cfg CatalogConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(cfg.Rooms) == 0 {
		return fmt.Errorf("no rooms in yaml")
	}
	if err := config.ValidateCatalog(cfg.RoomTypes, cfg.Rooms); err != nil {
		return err
	}

	before, err := db.GetRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	if err := db.SyncCatalog(ctx, cfg.RoomTypes, cfg.Rooms); err != nil {
		return fmt.Errorf("sync catalog: %w", err)
	}
	after, err := db.GetRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}

	fmt.Printf("done: types=%d rooms=%d created=%d\n", len(cfg.RoomTypes), len(after), len(after)-len(before))
	return nil
}

func setRoomStatus(ctx context.Context, db *database.DB, number, status string) error {
	rooms, err := db.GetRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	for _, r := range rooms {
		if r.Number != number {
			continue
		}
		if err := db.UpdateRoomStatus(ctx, r.ID, status); err != nil {
			return fmt.Errorf("update room %s: %w", number, err)
		}
		fmt.Printf("room %s: %s -> %s\n", number, r.StatusCode, status)
		return nil
	}
	return fmt.Errorf("room %s not found", number)
}
