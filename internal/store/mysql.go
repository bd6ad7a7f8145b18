package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ndanilov/claimwatch/internal/model"
)

// MySQL is the gorm-backed Store for deployments
type MySQL struct {
	db *gorm.DB
}

// OpenMySQL connects to MySQL and migrates the schema. The DSN gets
// parseTime and utf8mb4 defaults when the caller left them out.
func OpenMySQL(dsn string) (*MySQL, error) {
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}

	gormLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}

	if err := db.AutoMigrate(
		&claimRow{}, &sourceRow{}, &entityRow{},
		&edgeRow{}, &eventRow{}, &snapshotRow{}, &alertRow{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &MySQL{db: db}, nil
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}

type claimRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Text         string `gorm:"type:text"`
	Type         string `gorm:"size:32;index"`
	FirstSource  string `gorm:"size:512"`
	Confidence   float64
	Verification string `gorm:"size:32"`
	Parent       *int64 `gorm:"index"`
	MutationDiff string `gorm:"type:text"`
	Tags         string `gorm:"size:512"`
	CreatedAt    time.Time
}

func (claimRow) TableName() string { return "claims" }

type sourceRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Type        string `gorm:"size:32;index"`
	Title       string `gorm:"size:512"`
	Locator     string `gorm:"size:1024"`
	Author      string `gorm:"size:255"`
	PublishedAt time.Time
	Credibility float64
	CreatedAt   time.Time
}

func (sourceRow) TableName() string { return "sources" }

type entityRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:255;index"`
	Type        string `gorm:"size:32"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (entityRow) TableName() string { return "entities" }

type edgeRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	FromKind  string `gorm:"size:16;index:idx_edges_from"`
	FromID    int64  `gorm:"index:idx_edges_from"`
	ToKind    string `gorm:"size:16;index:idx_edges_to"`
	ToID      int64  `gorm:"index:idx_edges_to"`
	Relation  string `gorm:"size:32;index"`
	Weight    float64
	CreatedAt time.Time
}

func (edgeRow) TableName() string { return "edges" }

type eventRow struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	ClaimID  int64  `gorm:"index"`
	Type     string `gorm:"size:32"`
	SourceID *int64
	Metadata string    `gorm:"type:json"`
	At       time.Time `gorm:"index"`
}

func (eventRow) TableName() string { return "events" }

type snapshotRow struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	Series  string `gorm:"size:64;index:idx_snapshots_series"`
	ClaimID int64  `gorm:"index:idx_snapshots_series"`
	Payload string `gorm:"type:json"`
	At      time.Time
}

func (snapshotRow) TableName() string { return "snapshots" }

type alertRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	ClaimID      int64  `gorm:"index"`
	Type         string `gorm:"size:32;index"`
	Severity     string `gorm:"size:16"`
	Message      string `gorm:"type:text"`
	Value        float64
	Threshold    float64
	Acknowledged bool
	CreatedAt    time.Time
}

func (alertRow) TableName() string { return "alerts" }

func mapNotFound(err error, what string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return err
}

// InsertClaim stores a new claim, verifying the mutation parent exists
// in the same transaction
func (s *MySQL) InsertClaim(ctx context.Context, c *model.Claim) (int64, error) {
	row := claimRow{
		Text:         c.Text,
		Type:         string(c.Type),
		FirstSource:  c.FirstSource,
		Confidence:   c.Confidence,
		Verification: string(c.Verification),
		Parent:       c.Parent,
		MutationDiff: c.MutationDiff,
		Tags:         c.Tags,
		CreatedAt:    c.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.Parent != nil {
			var n int64
			if err := tx.Model(&claimRow{}).Where("id = ?", *c.Parent).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("mutation parent %d: %w", *c.Parent, ErrNotFound)
			}
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return 0, fmt.Errorf("inserting claim: %w", err)
	}
	return row.ID, nil
}

// GetClaim returns the claim or ErrNotFound
func (s *MySQL) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	var row claimRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, mapNotFound(err, "claim", id)
	}
	return claimFromRow(&row), nil
}

// UpdateClaim overwrites a claim's stored fields
func (s *MySQL) UpdateClaim(ctx context.Context, c *model.Claim) error {
	res := s.db.WithContext(ctx).Model(&claimRow{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
		"confidence":   c.Confidence,
		"verification": string(c.Verification),
		"tags":         c.Tags,
	})
	if res.Error != nil {
		return fmt.Errorf("updating claim %d: %w", c.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("claim %d: %w", c.ID, ErrNotFound)
	}
	return nil
}

// SearchClaims returns claims containing the query, oldest first
func (s *MySQL) SearchClaims(ctx context.Context, query string, limit int) ([]*model.Claim, error) {
	q := s.db.WithContext(ctx).Model(&claimRow{}).Order("id ASC")
	if query != "" {
		q = q.Where("LOWER(text) LIKE ?", "%"+strings.ToLower(query)+"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []claimRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("searching claims: %w", err)
	}
	out := make([]*model.Claim, len(rows))
	for i := range rows {
		out[i] = claimFromRow(&rows[i])
	}
	return out, nil
}

// ListClaimIDs returns every claim id in ascending order
func (s *MySQL) ListClaimIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&claimRow{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing claim ids: %w", err)
	}
	return ids, nil
}

// ChildrenOf returns the direct mutation children of a claim
func (s *MySQL) ChildrenOf(ctx context.Context, id int64) ([]*model.Claim, error) {
	var rows []claimRow
	if err := s.db.WithContext(ctx).Where("parent = ?", id).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing children of claim %d: %w", id, err)
	}
	out := make([]*model.Claim, len(rows))
	for i := range rows {
		out[i] = claimFromRow(&rows[i])
	}
	return out, nil
}

func claimFromRow(r *claimRow) *model.Claim {
	return &model.Claim{
		ID:           r.ID,
		Text:         r.Text,
		Type:         model.ClaimType(r.Type),
		FirstSource:  r.FirstSource,
		Confidence:   r.Confidence,
		Verification: model.Verification(r.Verification),
		Parent:       r.Parent,
		MutationDiff: r.MutationDiff,
		Tags:         r.Tags,
		CreatedAt:    r.CreatedAt,
	}
}

// InsertSource stores a new source and returns its id
func (s *MySQL) InsertSource(ctx context.Context, src *model.Source) (int64, error) {
	row := sourceRow{
		Type:        string(src.Type),
		Title:       src.Title,
		Locator:     src.Locator,
		Author:      src.Author,
		PublishedAt: src.PublishedAt,
		Credibility: src.Credibility,
		CreatedAt:   src.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("inserting source: %w", err)
	}
	return row.ID, nil
}

// GetSource returns the source or ErrNotFound
func (s *MySQL) GetSource(ctx context.Context, id int64) (*model.Source, error) {
	var row sourceRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, mapNotFound(err, "source", id)
	}
	return &model.Source{
		ID:          row.ID,
		Type:        model.SourceType(row.Type),
		Title:       row.Title,
		Locator:     row.Locator,
		Author:      row.Author,
		PublishedAt: row.PublishedAt,
		Credibility: row.Credibility,
		CreatedAt:   row.CreatedAt,
	}, nil
}

// ListSourceIDs returns every source id in ascending order
func (s *MySQL) ListSourceIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&sourceRow{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing source ids: %w", err)
	}
	return ids, nil
}

// InsertEntity stores a new entity and returns its id
func (s *MySQL) InsertEntity(ctx context.Context, e *model.Entity) (int64, error) {
	row := entityRow{
		Name:        e.Name,
		Type:        e.Type,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("inserting entity: %w", err)
	}
	return row.ID, nil
}

// GetEntity returns the entity or ErrNotFound
func (s *MySQL) GetEntity(ctx context.Context, id int64) (*model.Entity, error) {
	var row entityRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, mapNotFound(err, "entity", id)
	}
	return &model.Entity{
		ID:          row.ID,
		Name:        row.Name,
		Type:        row.Type,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
	}, nil
}

// ListEntityIDs returns every entity id in ascending order
func (s *MySQL) ListEntityIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&entityRow{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing entity ids: %w", err)
	}
	return ids, nil
}

// NodeCounts reports how many claims, sources, and entities exist
func (s *MySQL) NodeCounts(ctx context.Context) (int64, int64, int64, error) {
	var claims, sources, entities int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&claimRow{}).Count(&claims).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("counting claims: %w", err)
	}
	if err := db.Model(&sourceRow{}).Count(&sources).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("counting sources: %w", err)
	}
	if err := db.Model(&entityRow{}).Count(&entities).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("counting entities: %w", err)
	}
	return claims, sources, entities, nil
}

// InsertEdge stores a new edge and returns its id
func (s *MySQL) InsertEdge(ctx context.Context, e *model.Edge) (int64, error) {
	row := edgeRow{
		FromKind:  string(e.From.Kind),
		FromID:    e.From.ID,
		ToKind:    string(e.To.Kind),
		ToID:      e.To.ID,
		Relation:  string(e.Relation),
		Weight:    e.Weight,
		CreatedAt: e.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("inserting edge: %w", err)
	}
	return row.ID, nil
}

// EdgesFrom returns all edges originating at ref
func (s *MySQL) EdgesFrom(ctx context.Context, ref model.NodeRef) ([]*model.Edge, error) {
	return s.edgesWhere(ctx, "from_kind = ? AND from_id = ?", string(ref.Kind), ref.ID)
}

// EdgesTo returns all edges targeting ref
func (s *MySQL) EdgesTo(ctx context.Context, ref model.NodeRef) ([]*model.Edge, error) {
	return s.edgesWhere(ctx, "to_kind = ? AND to_id = ?", string(ref.Kind), ref.ID)
}

// EdgesByRelation returns every edge with the given relation
func (s *MySQL) EdgesByRelation(ctx context.Context, rel model.Relation) ([]*model.Edge, error) {
	return s.edgesWhere(ctx, "relation = ?", string(rel))
}

// ListEdges returns every edge regardless of relation
func (s *MySQL) ListEdges(ctx context.Context) ([]*model.Edge, error) {
	return s.edgesWhere(ctx, "1 = 1")
}

func (s *MySQL) edgesWhere(ctx context.Context, cond string, args ...interface{}) ([]*model.Edge, error) {
	var rows []edgeRow
	if err := s.db.WithContext(ctx).Where(cond, args...).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	out := make([]*model.Edge, len(rows))
	for i, r := range rows {
		out[i] = &model.Edge{
			ID:        r.ID,
			From:      model.NodeRef{Kind: model.NodeKind(r.FromKind), ID: r.FromID},
			To:        model.NodeRef{Kind: model.NodeKind(r.ToKind), ID: r.ToID},
			Relation:  model.Relation(r.Relation),
			Weight:    r.Weight,
			CreatedAt: r.CreatedAt,
		}
	}
	return out, nil
}

// EdgeCount reports the total number of edges
func (s *MySQL) EdgeCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&edgeRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting edges: %w", err)
	}
	return n, nil
}

// InsertEvent stores a new propagation event and returns its id
func (s *MySQL) InsertEvent(ctx context.Context, ev *model.Event) (int64, error) {
	meta := "{}"
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encoding event metadata: %w", err)
		}
		meta = string(b)
	}
	row := eventRow{
		ClaimID:  ev.ClaimID,
		Type:     string(ev.Type),
		SourceID: ev.SourceID,
		Metadata: meta,
		At:       ev.At,
	}
	if row.At.IsZero() {
		row.At = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("inserting event: %w", err)
	}
	return row.ID, nil
}

// EventsFor returns a claim's events in chronological order
func (s *MySQL) EventsFor(ctx context.Context, claimID int64) ([]*model.Event, error) {
	var rows []eventRow
	if err := s.db.WithContext(ctx).Where("claim_id = ?", claimID).Order("at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing events for claim %d: %w", claimID, err)
	}
	out := make([]*model.Event, len(rows))
	for i, r := range rows {
		ev := &model.Event{
			ID:       r.ID,
			ClaimID:  r.ClaimID,
			Type:     model.EventType(r.Type),
			SourceID: r.SourceID,
			At:       r.At,
		}
		if r.Metadata != "" && r.Metadata != "{}" {
			if err := json.Unmarshal([]byte(r.Metadata), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decoding event %d metadata: %w", r.ID, err)
			}
		}
		out[i] = ev
	}
	return out, nil
}

// Append logs one timeline snapshot
func (s *MySQL) Append(ctx context.Context, series string, claimID int64, payload map[string]interface{}, at time.Time) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", series, err)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := snapshotRow{
		Series:  series,
		ClaimID: claimID,
		Payload: string(b),
		At:      at,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("appending to %s: %w", series, err)
	}
	return nil
}

// History returns the newest rows first, bounded by limit and the
// optional as-of time
func (s *MySQL) History(ctx context.Context, series string, claimID int64, limit int, before time.Time) ([]SnapshotRow, error) {
	q := s.db.WithContext(ctx).Model(&snapshotRow{}).
		Where("series = ? AND claim_id = ?", series, claimID).
		Order("at DESC, id DESC")
	if !before.IsZero() {
		q = q.Where("at <= ?", before)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []snapshotRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reading %s history: %w", series, err)
	}
	out := make([]SnapshotRow, len(rows))
	for i, r := range rows {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(r.Payload), &payload); err != nil {
			return nil, fmt.Errorf("decoding %s row %d: %w", series, r.ID, err)
		}
		out[i] = SnapshotRow{
			ID:      r.ID,
			Series:  r.Series,
			ClaimID: r.ClaimID,
			Payload: payload,
			At:      r.At,
		}
	}
	return out, nil
}

// Latest returns the newest row or ErrNotFound
func (s *MySQL) Latest(ctx context.Context, series string, claimID int64) (*SnapshotRow, error) {
	rows, err := s.History(ctx, series, claimID, 1, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s for claim %d: %w", series, claimID, ErrNotFound)
	}
	return &rows[0], nil
}

// InsertAlert stores a fired alert and returns its id
func (s *MySQL) InsertAlert(ctx context.Context, a *model.Alert) (int64, error) {
	row := alertRow{
		ClaimID:      a.ClaimID,
		Type:         string(a.Type),
		Severity:     string(a.Severity),
		Message:      a.Message,
		Value:        a.Value,
		Threshold:    a.Threshold,
		Acknowledged: a.Acknowledged,
		CreatedAt:    a.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("inserting alert: %w", err)
	}
	return row.ID, nil
}

// ListAlerts returns matching alerts, newest first
func (s *MySQL) ListAlerts(ctx context.Context, f AlertFilter) ([]*model.Alert, error) {
	q := s.db.WithContext(ctx).Model(&alertRow{}).Order("created_at DESC, id DESC")
	if f.ClaimID != 0 {
		q = q.Where("claim_id = ?", f.ClaimID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", string(f.Severity))
	}
	if f.Unacknowledged {
		q = q.Where("acknowledged = ?", false)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []alertRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	out := make([]*model.Alert, len(rows))
	for i, r := range rows {
		out[i] = &model.Alert{
			ID:           r.ID,
			ClaimID:      r.ClaimID,
			Type:         model.AlertType(r.Type),
			Severity:     model.Severity(r.Severity),
			Message:      r.Message,
			Value:        r.Value,
			Threshold:    r.Threshold,
			Acknowledged: r.Acknowledged,
			CreatedAt:    r.CreatedAt,
		}
	}
	return out, nil
}

// Acknowledge marks existing alerts for the claim as acknowledged
func (s *MySQL) Acknowledge(ctx context.Context, claimID int64, typ model.AlertType) (int64, error) {
	q := s.db.WithContext(ctx).Model(&alertRow{}).
		Where("claim_id = ? AND acknowledged = ?", claimID, false)
	if typ != "" {
		q = q.Where("type = ?", string(typ))
	}
	res := q.Update("acknowledged", true)
	if res.Error != nil {
		return 0, fmt.Errorf("acknowledging alerts for claim %d: %w", claimID, res.Error)
	}
	return res.RowsAffected, nil
}

// Close releases the underlying connection pool
func (s *MySQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
