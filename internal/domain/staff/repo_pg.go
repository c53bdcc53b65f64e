package staff

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/query"
)

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const userCols = `id, username, password_hash, nom, prenom, role, actif, created_at, updated_at`

func userSearchText(u *User) string {
	return query.SearchText(u.Username, u.LastName, u.FirstName)
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO utilisateur (id, username, password_hash, nom, prenom, role, actif, search_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.PasswordHash, u.LastName, u.FirstName, u.Role, u.Active, userSearchText(u),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return apperr.FromDB(err, "user")
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM utilisateur WHERE id = $1`, id))
	return u, apperr.FromDB(err, "user")
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM utilisateur WHERE lower(username) = lower($1)`, username))
	return u, apperr.FromDB(err, "user")
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE utilisateur SET
			password_hash = $2, nom = $3, prenom = $4, role = $5, actif = $6,
			search_text = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.PasswordHash, u.LastName, u.FirstName, u.Role, u.Active, userSearchText(u),
	).Scan(&u.UpdatedAt)
	return apperr.FromDB(err, "user")
}

func (r *userRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	qb := query.New("utilisateur", userCols)
	if f.Role != "" {
		qb.Eq("role", f.Role)
	}
	if f.ActiveOnly {
		qb.Add("actif")
	}
	qb.Search("search_text", f.Search)
	qb.OrderBy("nom, prenom")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB(err, "users")
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromDB(err, "users")
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.LastName, &u.FirstName,
		&u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
