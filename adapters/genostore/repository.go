package genostore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"vqtlbrowser/domain/vqtl"
	"vqtlbrowser/internal/errors"
	"vqtlbrowser/ports"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const dosageQuery = `SELECT ind, value FROM mean_qtl_geno WHERE gene = ?`

// genotypeRepository implements ports.GenotypeRepository. It holds no open
// connection; each query opens the store and closes it when done.
type genotypeRepository struct {
	driver string
	dsn    string
}

// NewGenotypeRepository creates a repository over the mean_qtl_geno table
func NewGenotypeRepository(driver, dsn string) ports.GenotypeRepository {
	return &genotypeRepository{driver: driver, dsn: dsn}
}

// DosagesForGene returns one dosage per individual in store order
func (r *genotypeRepository) DosagesForGene(ctx context.Context, gene string) (vqtl.GenotypeTable, error) {
	start := time.Now()

	db, err := open(ctx, r.driver, r.dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var rows []vqtl.Dosage
	if err := db.SelectContext(ctx, &rows, db.Rebind(dosageQuery), gene); err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to query mean_qtl_geno")
	}
	if len(rows) == 0 {
		return nil, errors.NotFound(fmt.Sprintf("genotypes for gene %s", gene))
	}

	log.Infof("[GenotypeRepository] %d dosages for %s loaded in %.2fms",
		len(rows), gene, float64(time.Since(start).Nanoseconds())/1e6)
	return vqtl.GenotypeTable(rows), nil
}

func open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if driver == "sqlite" {
		// sqlite would silently create an empty database
		if path, ok := sqliteFile(dsn); ok {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return nil, errors.NotFound("genotype database " + path)
			}
		}
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to connect to genotype database")
	}
	return db, nil
}

// sqliteFile returns the file behind a sqlite DSN, either a plain path or a
// file: URI. In-memory databases have no file.
func sqliteFile(dsn string) (string, bool) {
	path := dsn
	if strings.HasPrefix(path, "file:") {
		path = strings.TrimPrefix(path, "file:")
		var query string
		path, query, _ = strings.Cut(path, "?")
		if values, err := url.ParseQuery(query); err == nil && values.Get("mode") == "memory" {
			return "", false
		}
		// file:///abs/path carries an empty authority
		path = strings.TrimPrefix(path, "//")
	}
	if path == "" || path == ":memory:" {
		return "", false
	}
	return path, true
}

// WriteDosages creates mean_qtl_geno if needed and appends the table for gene
func WriteDosages(ctx context.Context, driver, dsn, gene string, table vqtl.GenotypeTable) error {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to connect to genotype database")
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS mean_qtl_geno (
		gene TEXT NOT NULL,
		ind TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL
	)`); err != nil {
		return errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to create mean_qtl_geno")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to begin transaction")
	}
	insert := tx.Rebind(`INSERT INTO mean_qtl_geno (gene, ind, value) VALUES (?, ?, ?)`)
	for _, d := range table {
		if _, err := tx.ExecContext(ctx, insert, gene, d.Individual, d.Value); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to insert dosage")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to commit dosages")
	}
	return nil
}
