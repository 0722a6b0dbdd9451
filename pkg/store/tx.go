package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup by id matches no row, mirroring
// crm-engine's domain.ErrLeadNotFound translation of sql.ErrNoRows.
var ErrNotFound = errors.New("store: not found")

// Tx scopes every repository operation to one transaction, per
// Store.WithTx.
type Tx struct {
	tx *sql.Tx
}

// GetVehicleForUpdate locks and returns one vehicle row, or ErrNotFound.
func (t *Tx) GetVehicleForUpdate(ctx context.Context, id string) (*Vehicle, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, name, vtype, vconfig, active, immobilized, lat, lon
		FROM vehicle WHERE id = $1 FOR UPDATE`, id)
	return scanVehicle(row)
}

func scanVehicle(row *sql.Row) (*Vehicle, error) {
	v := &Vehicle{}
	err := row.Scan(&v.ID, &v.Name, &v.VType, &v.VConfig, &v.Active, &v.Immobilized, &v.Lat, &v.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ActiveVehicles returns every currently-active vehicle, used to answer a
// worker's cold-start inventory request.
func (t *Tx) ActiveVehicles(ctx context.Context) ([]Vehicle, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, name, vtype, vconfig, active, immobilized, lat, lon
		FROM vehicle WHERE active = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.Name, &v.VType, &v.VConfig, &v.Active, &v.Immobilized, &v.Lat, &v.Lon); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVehiclePosition overwrites the vehicle's live lat/lon and appends
// a VehiclePos event row.
func (t *Tx) UpdateVehiclePosition(ctx context.Context, vehicleID string, lat, lon float64, ts time.Time) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE vehicle SET lat = $2, lon = $3, updated_at = now() WHERE id = $1`,
		vehicleID, lat, lon); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO vehicle_pos_event (vehicle_id, ts, lat, lon) VALUES ($1, $2, $3, $4)`,
		vehicleID, ts, lat, lon)
	return err
}

// ActiveGeofencesForVehicle returns every active geofence linked to vehicleID.
func (t *Tx) ActiveGeofencesForVehicle(ctx context.Context, vehicleID string) ([]Geofence, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT g.id, g.name, g.data, g.active, g.immobilize_enter, g.immobilize_leave
		FROM geofence g
		JOIN vehicle_geofence vg ON vg.geofence_id = g.id
		WHERE vg.vehicle_id = $1 AND g.active = TRUE`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Geofence
	for rows.Next() {
		var g Geofence
		if err := rows.Scan(&g.ID, &g.Name, &g.Data, &g.Active, &g.ImmobilizeEnter, &g.ImmobilizeLeave); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// InsertGeofenceEvent records one geofence boundary crossing.
func (t *Tx) InsertGeofenceEvent(ctx context.Context, ev VehicleGeofenceEvent) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO vehicle_geofence_event (vehicle_id, geofence_id, ts, entered) VALUES ($1, $2, $3, $4)`,
		ev.VehicleID, ev.GeofenceID, ev.TS, ev.Entered)
	return err
}

// SetImmobilized updates the vehicle's latched immobilizer bit.
func (t *Tx) SetImmobilized(ctx context.Context, vehicleID string, active bool) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE vehicle SET immobilized = $2, updated_at = now() WHERE id = $1`, vehicleID, active)
	return err
}

// InsertImmobilizedEvent records one immobilizer state change.
func (t *Tx) InsertImmobilizedEvent(ctx context.Context, ev VehicleImmobilizedEvent) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO vehicle_immobilized_event (vehicle_id, ts, user_id, geofence_id, active)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.VehicleID, ev.TS, ev.Correlation.UserID, ev.Correlation.GeofenceID, ev.Active)
	return err
}
