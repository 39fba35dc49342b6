package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bootstrap creates the engine tables and seeds the initial admin user.
// Statements run one at a time: the pgx stdlib driver prepares each
// statement and will not accept a multi-statement batch.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range strings.Split(s.Dialect.SchemaSQL(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	if err := s.seedAdminUser(ctx); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context) error {
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	pb := s.Dialect.NewParamBuilder()
	_, err = Exec(ctx, s.DB, fmt.Sprintf(
		`INSERT INTO users (id, email, password_hash, roles) VALUES (%s, %s, %s, %s)`,
		pb.Add(GenerateUUID()), pb.Add("admin@localhost"), pb.Add(string(hash)), pb.Add(`["admin"]`)),
		pb.Params()...)
	if err != nil {
		return err
	}
	log.Println("Seeded default admin user (admin@localhost / changeme)")
	return nil
}
