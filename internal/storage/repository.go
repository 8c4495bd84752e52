package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dealer-pricing/internal/pricing"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound is returned when a tenant-scoped row does not exist.
	ErrNotFound = errors.New("storage: not found")
)

const (
	listComparablesSQL = `SELECT
        id,
        source,
        COALESCE(regnr, ''),
        make,
        model,
        COALESCE(variant, ''),
        model_year,
        COALESCE(fuel, ''),
        COALESCE(gearbox, ''),
        mileage_km,
        price::text,
        COALESCE(location, ''),
        listed_at,
        fetched_at
    FROM comparable_listings
    WHERE lower(make) = lower($1)
      AND lower(model) = lower($2)
      AND price > 0`

	vehicleColumns = `id,
        tenant_id,
        COALESCE(stock_number, ''),
        COALESCE(regnr, ''),
        make,
        model,
        COALESCE(variant, ''),
        model_year,
        mileage_km,
        COALESCE(fuel, ''),
        COALESCE(gearbox, ''),
        equipment_score,
        asking_price::text,
        cost_basis::text,
        status,
        stocked_at,
        price_updated_at,
        updated_at`

	getVehicleSQL = `SELECT ` + vehicleColumns + `
    FROM vehicles
    WHERE tenant_id = $1 AND id = $2;`

	listInStockVehiclesSQL = `SELECT ` + vehicleColumns + `
    FROM vehicles
    WHERE tenant_id = $1
      AND status = 'in_stock'
      AND id > $2
    ORDER BY id
    LIMIT $3;`

	updateAskingPriceSQL = `UPDATE vehicles
    SET asking_price = $3,
        price_updated_at = now(),
        updated_at = now()
    WHERE tenant_id = $1 AND id = $2;`

	listActiveTenantsSQL = `SELECT DISTINCT tenant_id
    FROM vehicles
    WHERE status = 'in_stock'
    ORDER BY tenant_id;`

	getRulesSQL = `SELECT
        target_gross_pct,
        min_gross_pct,
        tier1_days, tier1_discount,
        tier2_days, tier2_discount,
        tier3_days, tier3_discount,
        high_rating_cutoff,
        low_rating_cutoff
    FROM pricing_rules
    WHERE tenant_id = $1;`

	upsertRulesSQL = `INSERT INTO pricing_rules (
        tenant_id,
        target_gross_pct,
        min_gross_pct,
        tier1_days, tier1_discount,
        tier2_days, tier2_discount,
        tier3_days, tier3_discount,
        high_rating_cutoff,
        low_rating_cutoff
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (tenant_id) DO UPDATE
    SET
        target_gross_pct   = EXCLUDED.target_gross_pct,
        min_gross_pct      = EXCLUDED.min_gross_pct,
        tier1_days         = EXCLUDED.tier1_days,
        tier1_discount     = EXCLUDED.tier1_discount,
        tier2_days         = EXCLUDED.tier2_days,
        tier2_discount     = EXCLUDED.tier2_discount,
        tier3_days         = EXCLUDED.tier3_days,
        tier3_discount     = EXCLUDED.tier3_discount,
        high_rating_cutoff = EXCLUDED.high_rating_cutoff,
        low_rating_cutoff  = EXCLUDED.low_rating_cutoff,
        updated_at         = now();`

	insertSuggestionSQL = `INSERT INTO price_suggestions (
        id,
        tenant_id,
        vehicle_id,
        status,
        low_price,
        mid_price,
        high_price,
        prob_14d,
        prob_30d,
        rating,
        as_of,
        payload
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    RETURNING created_at;`

	suggestionColumns = `id, tenant_id, vehicle_id, payload, created_at`

	latestSuggestionSQL = `SELECT ` + suggestionColumns + `
    FROM price_suggestions
    WHERE tenant_id = $1 AND vehicle_id = $2
    ORDER BY created_at DESC
    LIMIT 1;`

	listRecentSuggestionsSQL = `SELECT ` + suggestionColumns + `
    FROM price_suggestions
    WHERE tenant_id = $1
    ORDER BY created_at DESC
    LIMIT $2;`

	insertAlertSQL = `INSERT INTO deviation_alerts (
        tenant_id,
        vehicle_id,
        suggestion_id,
        asking_price,
        suggested_mid,
        deviation_pct,
        threshold_pct,
        direction,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING id, created_at;`

	alertColumns = `id,
        tenant_id,
        vehicle_id,
        suggestion_id,
        asking_price::text,
        suggested_mid::text,
        deviation_pct::text,
        threshold_pct::text,
        direction,
        channels,
        created_at`

	lastAlertForVehicleSQL = `SELECT ` + alertColumns + `
    FROM deviation_alerts
    WHERE tenant_id = $1 AND vehicle_id = $2
    ORDER BY created_at DESC
    LIMIT 1;`

	listRecentAlertsSQL = `SELECT ` + alertColumns + `
    FROM deviation_alerts
    WHERE tenant_id = $1
    ORDER BY created_at DESC
    LIMIT $2;`

	deleteAlertsBeforeSQL = `DELETE FROM deviation_alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ComparableStore reads comparable market listings.
type ComparableStore interface {
	ListComparables(ctx context.Context, q ComparableQuery) ([]pricing.ComparableListing, error)
}

// VehicleStore reads inventory and writes back applied prices.
type VehicleStore interface {
	GetVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (VehicleRecord, error)
	ListInStockVehicles(ctx context.Context, tenantID uuid.UUID, after uuid.UUID, limit int) ([]VehicleRecord, error)
	UpdateAskingPrice(ctx context.Context, tenantID, vehicleID uuid.UUID, price decimal.Decimal) error
	ListActiveTenants(ctx context.Context) ([]uuid.UUID, error)
}

// RulesStore persists per-tenant pricing rules.
type RulesStore interface {
	GetRules(ctx context.Context, tenantID uuid.UUID) (pricing.PricingRules, error)
	UpsertRules(ctx context.Context, rules pricing.PricingRules) error
}

// SuggestionStore persists suggestion snapshots chosen by the caller.
type SuggestionStore interface {
	InsertSuggestion(ctx context.Context, rec SuggestionRecord) (SuggestionRecord, error)
	LatestSuggestion(ctx context.Context, tenantID, vehicleID uuid.UUID) (SuggestionRecord, error)
	ListRecentSuggestions(ctx context.Context, tenantID uuid.UUID, limit int) ([]SuggestionRecord, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	LastAlertForVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, tenantID uuid.UUID, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to comparables, inventory, rules, suggestions and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session when the conn is recycled
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListComparables loads listings for a make/model within a model year range.
// comparablesQuery adds the year bounds and row limit that are set. Zero
// leaves a bound open, the same as the HTTP listings source.
func comparablesQuery(q ComparableQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(listComparablesSQL)
	args := []any{q.Make, q.Model}
	if q.MinYear > 0 {
		args = append(args, q.MinYear)
		fmt.Fprintf(&sb, "\n      AND model_year >= $%d", len(args))
	}
	if q.MaxYear > 0 {
		args = append(args, q.MaxYear)
		fmt.Fprintf(&sb, "\n      AND model_year <= $%d", len(args))
	}
	sb.WriteString("\n    ORDER BY listed_at DESC, id")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, "\n    LIMIT $%d", len(args))
	}
	sb.WriteString(";")
	return sb.String(), args
}

func (s *Store) ListComparables(ctx context.Context, q ComparableQuery) ([]pricing.ComparableListing, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query, args := comparablesQuery(q)
	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list comparables: %w", queryErr)
	}
	defer rows.Close()

	listings := make([]pricing.ComparableListing, 0)
	for rows.Next() {
		var (
			l        pricing.ComparableListing
			priceStr string
		)
		if err := rows.Scan(
			&l.ID,
			&l.Source,
			&l.RegNr,
			&l.Make,
			&l.Model,
			&l.Variant,
			&l.ModelYear,
			&l.Fuel,
			&l.Gearbox,
			&l.MileageKm,
			&priceStr,
			&l.Location,
			&l.ListedAt,
			&l.FetchedAt,
		); err != nil {
			return nil, err
		}
		if l.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse listing %d price: %w", l.ID, err)
		}
		listings = append(listings, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return listings, nil
}

// GetVehicle loads one inventory row.
func (s *Store) GetVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (VehicleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return VehicleRecord{}, err
	}

	rec, scanErr := scanVehicle(pool.QueryRow(ctx, getVehicleSQL, tenantID, vehicleID))
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return VehicleRecord{}, ErrNotFound
	}
	if scanErr != nil {
		return VehicleRecord{}, fmt.Errorf("get vehicle: %w", scanErr)
	}
	return rec, nil
}

// ListInStockVehicles pages through a tenant's in-stock inventory ordered by id.
// Pass uuid.Nil as after for the first page.
func (s *Store) ListInStockVehicles(ctx context.Context, tenantID uuid.UUID, after uuid.UUID, limit int) ([]VehicleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listInStockVehiclesSQL, tenantID, after, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list in-stock vehicles: %w", queryErr)
	}
	defer rows.Close()

	vehicles := make([]VehicleRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanVehicle(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		vehicles = append(vehicles, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return vehicles, nil
}

// UpdateAskingPrice writes an applied price back to the inventory row.
func (s *Store) UpdateAskingPrice(ctx context.Context, tenantID, vehicleID uuid.UUID, price decimal.Decimal) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, updateAskingPriceSQL, tenantID, vehicleID, price.String())
	if execErr != nil {
		return fmt.Errorf("update asking price: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveTenants returns tenants with at least one in-stock vehicle.
func (s *Store) ListActiveTenants(ctx context.Context) ([]uuid.UUID, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveTenantsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active tenants: %w", queryErr)
	}
	defer rows.Close()

	tenants := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return tenants, nil
}

// GetRules loads a tenant's pricing rules; ErrNotFound when none are stored.
func (s *Store) GetRules(ctx context.Context, tenantID uuid.UUID) (pricing.PricingRules, error) {
	pool, err := s.getPool()
	if err != nil {
		return pricing.PricingRules{}, err
	}

	rules := pricing.PricingRules{TenantID: tenantID}
	scanErr := pool.QueryRow(ctx, getRulesSQL, tenantID).Scan(
		&rules.TargetGrossPct,
		&rules.MinGrossPct,
		&rules.Tiers[0].Days, &rules.Tiers[0].Discount,
		&rules.Tiers[1].Days, &rules.Tiers[1].Discount,
		&rules.Tiers[2].Days, &rules.Tiers[2].Discount,
		&rules.HighRatingCutoff,
		&rules.LowRatingCutoff,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return pricing.PricingRules{}, ErrNotFound
	}
	if scanErr != nil {
		return pricing.PricingRules{}, fmt.Errorf("get pricing rules: %w", scanErr)
	}
	return rules, nil
}

// UpsertRules stores a tenant's pricing rules.
func (s *Store) UpsertRules(ctx context.Context, rules pricing.PricingRules) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, upsertRulesSQL,
		rules.TenantID,
		rules.TargetGrossPct,
		rules.MinGrossPct,
		rules.Tiers[0].Days, rules.Tiers[0].Discount,
		rules.Tiers[1].Days, rules.Tiers[1].Discount,
		rules.Tiers[2].Days, rules.Tiers[2].Discount,
		rules.HighRatingCutoff,
		rules.LowRatingCutoff,
	)
	if execErr != nil {
		return fmt.Errorf("upsert pricing rules: %w", execErr)
	}
	return nil
}

// InsertSuggestion persists a suggestion snapshot. A nil ID is generated.
func (s *Store) InsertSuggestion(ctx context.Context, rec SuggestionRecord) (SuggestionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SuggestionRecord{}, err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	payload, err := json.Marshal(rec.Suggestion)
	if err != nil {
		return SuggestionRecord{}, fmt.Errorf("encode suggestion: %w", err)
	}

	sg := rec.Suggestion
	if scanErr := pool.QueryRow(ctx, insertSuggestionSQL,
		rec.ID,
		rec.TenantID,
		rec.VehicleID,
		string(sg.Status),
		sg.Bands.Low.String(),
		sg.Bands.Mid.String(),
		sg.Bands.High.String(),
		sg.Saleability.Prob14,
		sg.Saleability.Prob30,
		string(sg.Saleability.Rating),
		sg.AsOf,
		payload,
	).Scan(&rec.CreatedAt); scanErr != nil {
		return SuggestionRecord{}, fmt.Errorf("insert suggestion: %w", scanErr)
	}
	return rec, nil
}

// LatestSuggestion returns the newest persisted suggestion for a vehicle.
func (s *Store) LatestSuggestion(ctx context.Context, tenantID, vehicleID uuid.UUID) (SuggestionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SuggestionRecord{}, err
	}

	rec, scanErr := scanSuggestion(pool.QueryRow(ctx, latestSuggestionSQL, tenantID, vehicleID))
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return SuggestionRecord{}, ErrNotFound
	}
	if scanErr != nil {
		return SuggestionRecord{}, fmt.Errorf("latest suggestion: %w", scanErr)
	}
	return rec, nil
}

// ListRecentSuggestions lists a tenant's most recent persisted suggestions.
func (s *Store) ListRecentSuggestions(ctx context.Context, tenantID uuid.UUID, limit int) ([]SuggestionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSuggestionsSQL, tenantID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent suggestions: %w", queryErr)
	}
	defer rows.Close()

	records := make([]SuggestionRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanSuggestion(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	if scanErr := pool.QueryRow(ctx, insertAlertSQL,
		alert.TenantID,
		alert.VehicleID,
		alert.SuggestionID,
		alert.AskingPrice.String(),
		alert.SuggestedMid.String(),
		alert.DeviationPct.String(),
		alert.ThresholdPct.String(),
		alert.Direction,
		alert.Channels,
	).Scan(&alert.ID, &alert.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return alert, nil
}

// LastAlertForVehicle returns the most recent alert for a vehicle.
func (s *Store) LastAlertForVehicle(ctx context.Context, tenantID, vehicleID uuid.UUID) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	rec, scanErr := scanAlert(pool.QueryRow(ctx, lastAlertForVehicleSQL, tenantID, vehicleID))
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return AlertRecord{}, ErrNotFound
	}
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("last alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists a tenant's most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, tenantID uuid.UUID, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, tenantID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanVehicle(row pgx.Row) (VehicleRecord, error) {
	var (
		rec       VehicleRecord
		askingStr string
		costStr   *string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.StockNumber,
		&rec.RegNr,
		&rec.Make,
		&rec.Model,
		&rec.Variant,
		&rec.ModelYear,
		&rec.MileageKm,
		&rec.Fuel,
		&rec.Gearbox,
		&rec.EquipmentScore,
		&askingStr,
		&costStr,
		&rec.Status,
		&rec.StockedAt,
		&rec.PriceUpdatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return VehicleRecord{}, err
	}

	asking, err := decimal.NewFromString(askingStr)
	if err != nil {
		return VehicleRecord{}, fmt.Errorf("parse asking price: %w", err)
	}
	rec.AskingPrice = asking

	if costStr != nil {
		cost, err := decimal.NewFromString(*costStr)
		if err != nil {
			return VehicleRecord{}, fmt.Errorf("parse cost basis: %w", err)
		}
		rec.CostBasis = decimal.NewNullDecimal(cost)
	}
	return rec, nil
}

func scanSuggestion(row pgx.Row) (SuggestionRecord, error) {
	var (
		rec     SuggestionRecord
		payload []byte
	)
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.VehicleID, &payload, &rec.CreatedAt); err != nil {
		return SuggestionRecord{}, err
	}
	if err := json.Unmarshal(payload, &rec.Suggestion); err != nil {
		return SuggestionRecord{}, fmt.Errorf("decode suggestion %s: %w", rec.ID, err)
	}
	return rec, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec                                           AlertRecord
		askingStr, midStr, deviationStr, thresholdStr string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.VehicleID,
		&rec.SuggestionID,
		&askingStr,
		&midStr,
		&deviationStr,
		&thresholdStr,
		&rec.Direction,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var convErr error
	if rec.AskingPrice, convErr = decimal.NewFromString(askingStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse asking price: %w", convErr)
	}
	if rec.SuggestedMid, convErr = decimal.NewFromString(midStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse suggested mid: %w", convErr)
	}
	if rec.DeviationPct, convErr = decimal.NewFromString(deviationStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse deviation pct: %w", convErr)
	}
	if rec.ThresholdPct, convErr = decimal.NewFromString(thresholdStr); convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold pct: %w", convErr)
	}
	return rec, nil
}
