// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sweepkit/go-webmail-sweeper/domain"
	"github.com/sweepkit/go-webmail-sweeper/log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1-create-rules",
			Up: []string{`
				CREATE TABLE rules (
					id TEXT PRIMARY KEY,
					position INTEGER NOT NULL,
					name TEXT NOT NULL,
					matchtype TEXT NOT NULL,
					matchvalues TEXT NOT NULL,
					sendervalues TEXT NOT NULL,
					subjectvalues TEXT NOT NULL,
					action TEXT NOT NULL,
					targetfolder TEXT NOT NULL,
					enabled INTEGER NOT NULL
				)`,
			},
			Down: []string{`DROP TABLE rules`},
		},
	},
}

type Persistence struct {
	db *sqlx.DB
	l  *logrus.Logger
}

func NewPersistence(datasource string) (*Persistence, error) {
	db, err := sqlx.Connect("sqlite3", datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithField("file", datasource).Info("Connected")

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		return nil, fmt.Errorf("could not set synchronous mode: %w", err)
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrations, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	return &Persistence{
		db: db,
		l:  l,
	}, nil
}

func (p *Persistence) Close() error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	p.l.Info("Disconnected")
	return nil
}

type dbRule struct {
	Id            string
	Position      int
	Name          string
	MatchType     string `db:"matchtype"`
	MatchValues   string `db:"matchvalues"`
	SenderValues  string `db:"sendervalues"`
	SubjectValues string `db:"subjectvalues"`
	Action        string
	TargetFolder  string `db:"targetfolder"`
	Enabled       bool
}

func (p *Persistence) AllRules() ([]*domain.Rule, error) {
	return p.queryRules(`SELECT id, position, name, matchtype, matchvalues, sendervalues, subjectvalues, action, targetfolder, enabled FROM rules ORDER BY position`)
}

func (p *Persistence) EnabledRules() ([]*domain.Rule, error) {
	return p.queryRules(`SELECT id, position, name, matchtype, matchvalues, sendervalues, subjectvalues, action, targetfolder, enabled FROM rules WHERE enabled = 1 ORDER BY position`)
}

func (p *Persistence) queryRules(query string) ([]*domain.Rule, error) {
	dbRules := []dbRule{}

	err := p.db.Select(&dbRules, query)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	rules := []*domain.Rule{}
	for _, r := range dbRules {
		rule, err := toDomain(&r)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	p.l.WithField("Count", len(rules)).Debug("Found rules")

	return rules, nil
}

// SaveRule inserts or updates a rule. New rules get an id and are
// appended behind the existing ones; updates keep their position.
func (p *Persistence) SaveRule(rule *domain.Rule) (*domain.Rule, error) {
	err := rule.Validate()
	if err != nil {
		return nil, fmt.Errorf("refusing to save invalid rule: %w", err)
	}

	saved := *rule
	if len(saved.Id) == 0 {
		saved.Id = uuid.NewString()
	}

	position := 0
	err = p.db.Get(&position, `SELECT position FROM rules WHERE id = ?`, saved.Id)
	if errors.Is(err, sql.ErrNoRows) {
		err = p.db.Get(&position, `SELECT COALESCE(MAX(position), 0) + 1 FROM rules`)
	}
	if err != nil {
		return nil, fmt.Errorf("could not determine rule position: %w", err)
	}

	row, err := toRow(&saved, position)
	if err != nil {
		return nil, err
	}

	_, err = p.db.Exec(
		`INSERT OR REPLACE INTO rules (id, position, name, matchtype, matchvalues, sendervalues, subjectvalues, action, targetfolder, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Id, row.Position, row.Name, row.MatchType, row.MatchValues, row.SenderValues, row.SubjectValues, row.Action, row.TargetFolder, row.Enabled,
	)
	if err != nil {
		return nil, fmt.Errorf("could not save rule: %w", err)
	}

	p.l.WithFields(logrus.Fields{"Id": saved.Id, "Name": saved.Name}).Info("Persisted rule")
	return &saved, nil
}

func (p *Persistence) DeleteRule(id string) error {
	result, err := p.db.Exec(`DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get num of affected rows: %w", err)
	}

	if affected != 1 {
		return fmt.Errorf("unexpected number of affected rows, expected 1 got %d", affected)
	}

	return nil
}

// ReplaceRules swaps the whole rule set in one transaction, used by
// rule-set import. List order becomes the stored order.
func (p *Persistence) ReplaceRules(rules []*domain.Rule) error {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("refusing to import invalid rule: %w", err)
		}
	}

	tx, err := p.db.Beginx()
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}

	_, err = tx.Exec(`DELETE FROM rules`)
	if err != nil {
		return txEnd(tx, fmt.Errorf("could not clear rules: %w", err))
	}

	stmt, err := tx.Prepare(
		`INSERT INTO rules (id, position, name, matchtype, matchvalues, sendervalues, subjectvalues, action, targetfolder, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return txEnd(tx, fmt.Errorf("could not prepare statement: %w", err))
	}

	for i, rule := range rules {
		saved := *rule
		if len(saved.Id) == 0 {
			saved.Id = uuid.NewString()
		}

		row, err := toRow(&saved, i+1)
		if err != nil {
			return txEnd(tx, err)
		}

		_, err = stmt.Exec(
			row.Id, row.Position, row.Name, row.MatchType, row.MatchValues, row.SenderValues, row.SubjectValues, row.Action, row.TargetFolder, row.Enabled,
		)
		if err != nil {
			return txEnd(tx, fmt.Errorf("could not insert rule: %w", err))
		}
	}

	p.l.WithField("Count", len(rules)).Info("Replaced rule set")
	return txEnd(tx, nil)
}

func toRow(rule *domain.Rule, position int) (*dbRule, error) {
	matchValues, err := encodeValues(rule.MatchValues)
	if err != nil {
		return nil, err
	}
	senderValues, err := encodeValues(rule.SenderValues)
	if err != nil {
		return nil, err
	}
	subjectValues, err := encodeValues(rule.SubjectValues)
	if err != nil {
		return nil, err
	}

	return &dbRule{
		Id:            rule.Id,
		Position:      position,
		Name:          rule.Name,
		MatchType:     string(rule.MatchType),
		MatchValues:   matchValues,
		SenderValues:  senderValues,
		SubjectValues: subjectValues,
		Action:        string(rule.Action),
		TargetFolder:  rule.TargetFolder,
		Enabled:       rule.Enabled,
	}, nil
}

func toDomain(row *dbRule) (*domain.Rule, error) {
	matchValues, err := decodeValues(row.MatchValues)
	if err != nil {
		return nil, err
	}
	senderValues, err := decodeValues(row.SenderValues)
	if err != nil {
		return nil, err
	}
	subjectValues, err := decodeValues(row.SubjectValues)
	if err != nil {
		return nil, err
	}

	return &domain.Rule{
		Id:            row.Id,
		Name:          row.Name,
		MatchType:     domain.MatchType(row.MatchType),
		MatchValues:   matchValues,
		SenderValues:  senderValues,
		SubjectValues: subjectValues,
		Action:        domain.Action(row.Action),
		TargetFolder:  row.TargetFolder,
		Enabled:       row.Enabled,
	}, nil
}

func encodeValues(values domain.ValueList) (string, error) {
	if values == nil {
		values = domain.ValueList{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("could not encode values: %w", err)
	}
	return string(encoded), nil
}

// decodeValues accepts both the list shape and the legacy single-string
// shape older exports stored.
func decodeValues(encoded string) (domain.ValueList, error) {
	values := domain.ValueList{}
	err := json.Unmarshal([]byte(encoded), &values)
	if err != nil {
		return nil, fmt.Errorf("could not decode values: %w", err)
	}
	return values, nil
}

func txEnd(tx *sqlx.Tx, err error) error {
	if err == nil {
		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("could not commit tx: %w", err)
		}
	} else {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			errStr := err.Error()
			return fmt.Errorf("%s, could not rollback tx: %w", errStr, rollbackErr)
		} else {
			return err
		}
	}

	return nil
}
