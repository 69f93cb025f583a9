package eventlog

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"stakepool/core/types"
)

// ErrNotFound is returned when a receipt is not journaled.
var ErrNotFound = errors.New("eventlog: not found")

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// EventRecord is one journaled event. Seq is assigned by the database and
// gives the global commit order.
type EventRecord struct {
	Seq        uint64 `gorm:"primaryKey;autoIncrement"`
	Digest     string `gorm:"uniqueIndex;size:64;not null"`
	TxHash     string `gorm:"index;size:66;not null"`
	Position   int    `gorm:"not null"`
	Type       string `gorm:"index;size:64;not null"`
	Address    string `gorm:"index;size:96"`
	Attributes string `gorm:"type:text;not null"`
	Timestamp  int64  `gorm:"index;not null"`
	CreatedAt  time.Time
}

// ReceiptRecord stores the outcome of one submitted transaction.
type ReceiptRecord struct {
	TxHash    string `gorm:"primaryKey;size:66"`
	Sender    string `gorm:"index;size:96;not null"`
	Type      string `gorm:"size:32;not null"`
	Success   bool   `gorm:"not null"`
	ErrorCode string `gorm:"size:32"`
	Body      string `gorm:"type:text;not null"`
	Timestamp int64  `gorm:"index;not null"`
	CreatedAt time.Time
}

// Event decodes the stored record.
func (r *EventRecord) Event() (*types.Event, error) {
	attrs := make(map[string]string)
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("eventlog: decode attributes: %w", err)
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}

// Filter narrows List results.
type Filter struct {
	Type     string
	Address  string
	AfterSeq uint64
	Limit    int
}

// Store journals committed staking events and transaction receipts.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn. Postgres URLs and key/value DSNs select the postgres
// driver; anything else is treated as a sqlite path or URI.
func Open(dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("eventlog: dsn required")
	}
	var dialector gorm.Dialector
	if isPostgresDSN(trimmed) {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open: %w", err)
	}
	if !isPostgresDSN(trimmed) {
		// sqlite allows one writer; in-memory databases also vanish with their
		// last connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("eventlog: nil database")
	}
	if err := db.AutoMigrate(&EventRecord{}, &ReceiptRecord{}); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.HasPrefix(lower, "host=")
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// eventDigest identifies an event by transaction and position so a replayed
// append is rejected by the unique index instead of duplicated.
func eventDigest(txHash string, position int, evt *types.Event) string {
	h := blake3.New(32, nil)
	h.Write([]byte(txHash))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(position)))
	h.Write([]byte{0})
	h.Write([]byte(evt.Type))
	return hex.EncodeToString(h.Sum(nil))
}

func subjectAddress(evt *types.Event) string {
	if addr := evt.Attr("addr"); addr != "" {
		return addr
	}
	return evt.Attr("authority")
}

// Append journals the events and receipt of one committed transaction
// atomically. A nil receipt journals only the events.
func (s *Store) Append(ctx context.Context, receipt *types.Receipt, evts []*types.Event) error {
	if s == nil || s.db == nil {
		return errors.New("eventlog: store not configured")
	}
	var txHash string
	var ts int64
	if receipt != nil {
		txHash, ts = receipt.TxHash, receipt.Timestamp
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, evt := range evts {
			if evt == nil {
				continue
			}
			attrs, err := json.Marshal(evt.Attributes)
			if err != nil {
				return err
			}
			record := &EventRecord{
				Digest:     eventDigest(txHash, i, evt),
				TxHash:     txHash,
				Position:   i,
				Type:       evt.Type,
				Address:    subjectAddress(evt),
				Attributes: string(attrs),
				Timestamp:  ts,
			}
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("eventlog: append event: %w", err)
			}
		}
		if receipt == nil {
			return nil
		}
		body, err := json.Marshal(receipt)
		if err != nil {
			return err
		}
		record := &ReceiptRecord{
			TxHash:    receipt.TxHash,
			Sender:    receipt.From,
			Type:      receipt.Type,
			Success:   receipt.Success,
			ErrorCode: receipt.ErrorCode,
			Body:      string(body),
			Timestamp: receipt.Timestamp,
		}
		if err := tx.Save(record).Error; err != nil {
			return fmt.Errorf("eventlog: append receipt: %w", err)
		}
		return nil
	})
}

// List returns journaled events in commit order.
func (s *Store) List(ctx context.Context, filter Filter) ([]EventRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("eventlog: store not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := s.db.WithContext(ctx).Model(&EventRecord{}).Where("seq > ?", filter.AfterSeq)
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if addr := strings.TrimSpace(filter.Address); addr != "" {
		query = query.Where("address = ?", addr)
	}
	var records []EventRecord
	if err := query.Order("seq ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	return records, nil
}

// Receipt loads the receipt journaled for txHash.
func (s *Store) Receipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("eventlog: store not configured")
	}
	var record ReceiptRecord
	err := s.db.WithContext(ctx).Where("tx_hash = ?", strings.ToLower(strings.TrimSpace(txHash))).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("eventlog: receipt: %w", err)
	}
	receipt := new(types.Receipt)
	if err := json.Unmarshal([]byte(record.Body), receipt); err != nil {
		return nil, fmt.Errorf("eventlog: decode receipt: %w", err)
	}
	return receipt, nil
}
