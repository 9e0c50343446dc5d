package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the relational store for users, preferences and restaurants.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}
