package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/catalog"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/httpserver"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/store"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := openDB(getEnv("DB_PATH", "./data/app.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	cat, err := catalog.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load catalog")
	}

	reg := store.NewMemoryRegistry()
	srv := httpserver.New(reg, cat, db)
	port := getEnv("PORT", "5175")
	log.Info().Str("port", port).Msg("starting review-guesser server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
