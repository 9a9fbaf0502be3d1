package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xclone/internal/config"
	"xclone/internal/database"
)

const usage = `Usage: indexes [-timeout 1m] <command>

Commands:
  create     create missing MongoDB indexes and apply the Postgres schema
  list       print the indexes present on each collection
  drop       drop the application's MongoDB indexes
  recreate   drop, then create
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	timeout := flag.Duration("timeout", time.Minute, "overall deadline")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	cfg.ConfigureLogger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, flag.Arg(0)); err != nil {
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("Index command failed")
	}
}

func run(ctx context.Context, cfg *config.Config, command string) error {
	mongoDB, err := database.ConnectMongo(ctx, cfg)
	if err != nil {
		return err
	}
	defer mongoDB.Close(context.Background())

	switch command {
	case "create":
		if err := database.EnsureIndexes(ctx, mongoDB.DB); err != nil {
			return err
		}
		return applySchema(ctx, cfg)
	case "list":
		return list(ctx, mongoDB)
	case "drop":
		return database.DropIndexes(ctx, mongoDB.DB)
	case "recreate":
		if err := database.DropIndexes(ctx, mongoDB.DB); err != nil {
			return err
		}
		return database.EnsureIndexes(ctx, mongoDB.DB)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func applySchema(ctx context.Context, cfg *config.Config) error {
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.EnsureSchema(ctx, db)
}

func list(ctx context.Context, mongoDB *database.Mongo) error {
	indexes, err := database.ListIndexes(ctx, mongoDB.DB)
	if err != nil {
		return err
	}

	collections := make([]string, 0, len(indexes))
	for name := range indexes {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	for _, name := range collections {
		fmt.Printf("%s:\n", name)
		for _, spec := range indexes[name] {
			fmt.Printf("  %v  %v\n", spec["name"], spec["key"])
		}
	}
	return nil
}
