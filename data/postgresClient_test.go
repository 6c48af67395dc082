package data

import (
	"testing"

	"github.com/KotFed0t/fund_tracker_bot/config"
	"github.com/stretchr/testify/assert"
)

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{Postgres: config.Postgres{
		Host:     "db",
		Port:     5432,
		User:     "bot",
		Password: "p@ss word",
		DbName:   "fund_tracker",
	}}

	assert.Equal(t, "postgres://bot:p%40ss%20word@db:5432/fund_tracker?sslmode=disable", postgresDSN(cfg))
}
