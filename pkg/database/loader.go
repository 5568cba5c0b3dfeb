package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"revenue-forecast/pkg/models"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

const (
	driverMySQL    = "mysql"
	driverPostgres = "pgx"
)

var tableName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Source est une connexion ouverte vers la table des ventes.
type Source struct {
	DB     *sql.DB
	Driver string
	// DSN effectivement passé au driver (après conversion).
	DSN string
}

// Close ferme la connexion.
func (s *Source) Close() error { return s.DB.Close() }

// Open DSN mariadb:// ou mysql:// → driver MySQL, postgres:// → pgx.
// Tout autre DSN est passé tel quel au driver MySQL.
func Open(dsn string) (*Source, error) {
	driver, native, err := resolveDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, native)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Source{DB: db, Driver: driver, DSN: native}, nil
}

func resolveDSN(dsn string) (driver, native string, err error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return driverPostgres, dsn, nil
	}
	native, err = toMySQLDSN(dsn)
	return driverMySQL, native, err
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("dsn incomplet (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

// Query borne le chargement. From/To au format "YYYY-MM", vides = pas de borne.
type Query struct {
	Table    string
	Supplier string
	From     string
	To       string
	Progress bool
}

// placeholder retourne le n-ième paramètre (1-based) dans la syntaxe du driver.
func placeholder(driver string, n int) string {
	if driver == driverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// monthOrdinal "YYYY-MM" → YYYY*100+MM, comparable en SQL sur year*100+month.
func monthOrdinal(key string) (int, error) {
	var y, m int
	if _, err := fmt.Sscanf(key, "%4d-%2d", &y, &m); err != nil || m < 1 || m > 12 {
		return 0, fmt.Errorf("mois invalide %q (attendu YYYY-MM)", key)
	}
	return y*100 + m, nil
}

// buildWhere construit la clause WHERE et ses arguments alignés sur les placeholders.
func buildWhere(driver string, q Query) (string, []any, error) {
	var conds []string
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, placeholder(driver, len(args))))
	}
	if q.Supplier != "" {
		add("supplier = %s", q.Supplier)
	}
	if q.From != "" {
		from, err := monthOrdinal(q.From)
		if err != nil {
			return "", nil, err
		}
		add("year * 100 + month >= %s", from)
	}
	if q.To != "" {
		to, err := monthOrdinal(q.To)
		if err != nil {
			return "", nil, err
		}
		add("year * 100 + month <= %s", to)
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// LoadTransactions lit les lignes de vente de la table.
// Colonnes attendues : customer, article, article_group, supplier, country,
// year, month, amount.
func LoadTransactions(ctx context.Context, src *Source, q Query) ([]models.TransactionRow, error) {
	if !tableName.MatchString(q.Table) {
		return nil, fmt.Errorf("table invalide")
	}
	where, args, err := buildWhere(src.Driver, q)
	if err != nil {
		return nil, err
	}

	countQ := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, q.Table, where)
	var total int64
	if err := src.DB.QueryRowContext(ctx, countQ, args...).Scan(&total); err == nil {
		log.Printf("[DEBUG] Lignes à charger: %d", total)
	} else {
		log.Printf("[DEBUG] Count error: %v", err)
		total = -1
	}

	sel := fmt.Sprintf(`
		SELECT customer, article, article_group, supplier, country, year, month, amount
		FROM %s%s
		ORDER BY year, month
	`, q.Table, where)
	rows, err := src.DB.QueryContext(ctx, sel, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer rows.Close()

	var bar *progressbar.ProgressBar
	if q.Progress {
		bar = progressbar.Default(total, "chargement")
	}

	out := make([]models.TransactionRow, 0, max(total, 0))
	skipped := 0
	for rows.Next() {
		var (
			customer, article, group, supplier, country sql.NullString
			year, month                                 sql.NullInt64
			amount                                      decimal.NullDecimal
		)
		if err := rows.Scan(&customer, &article, &group, &supplier, &country, &year, &month, &amount); err != nil {
			return nil, err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
		if !customer.Valid || !year.Valid || !month.Valid || month.Int64 < 1 || month.Int64 > 12 {
			skipped++
			continue
		}
		out = append(out, models.TransactionRow{
			Customer:     models.NewCustomerID(customer.String),
			Article:      article.String,
			ArticleGroup: group.String,
			Supplier:     supplier.String,
			Country:      country.String,
			Year:         int(year.Int64),
			Month:        int(month.Int64),
			Amount:       amount.Decimal,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	log.Printf("[DEBUG] Lignes lues=%d, ignorées=%d", len(out)+skipped, skipped)
	return out, nil
}
