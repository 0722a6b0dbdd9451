package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/asyncvalue"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/resilience"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/store"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

// squareGeofenceGeoJSON is the same 10x10 polygon geometry pkg/geofence's
// tests use, spanning (0,0) to (10,10) so "outside" and "inside" points
// are simple to pick.
const squareGeofenceGeoJSON = `{"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`

// fakeTxStore is an in-memory TxStore, substituted for a live Postgres
// *store.Tx the way dispatcher tests substitute RunVehicle for simulator.Run.
type fakeTxStore struct {
	vehicles  map[string]*store.Vehicle
	geofences map[string][]store.Geofence

	geofenceEvents    []store.VehicleGeofenceEvent
	immobilizedEvents []store.VehicleImmobilizedEvent
}

func (f *fakeTxStore) GetVehicleForUpdate(_ context.Context, id string) (*store.Vehicle, error) {
	v, ok := f.vehicles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeTxStore) UpdateVehiclePosition(_ context.Context, vehicleID string, lat, lon float64, _ time.Time) error {
	f.vehicles[vehicleID].Lat = &lat
	f.vehicles[vehicleID].Lon = &lon
	return nil
}

func (f *fakeTxStore) ActiveGeofencesForVehicle(_ context.Context, vehicleID string) ([]store.Geofence, error) {
	return f.geofences[vehicleID], nil
}

func (f *fakeTxStore) InsertGeofenceEvent(_ context.Context, ev store.VehicleGeofenceEvent) error {
	f.geofenceEvents = append(f.geofenceEvents, ev)
	return nil
}

func (f *fakeTxStore) SetImmobilized(_ context.Context, vehicleID string, active bool) error {
	f.vehicles[vehicleID].Immobilized = active
	return nil
}

func (f *fakeTxStore) InsertImmobilizedEvent(_ context.Context, ev store.VehicleImmobilizedEvent) error {
	f.immobilizedEvents = append(f.immobilizedEvents, ev)
	return nil
}

// fakeRunner runs the callback directly against the shared fakeTxStore,
// with no real transaction semantics — adequate here since tests only
// assert on the store's final contents, never on rollback behavior.
type fakeRunner struct {
	store *fakeTxStore
}

func (r *fakeRunner) WithTx(_ context.Context, fn func(TxStore) error) error {
	return fn(r.store)
}

func newTestProcessor(b bus.Bus, subj wire.Subjects, fts *fakeTxStore) *Processor {
	return &Processor{
		bus:    b,
		subj:   subj,
		store:  &fakeRunner{store: fts},
		policy: asyncvalue.New(resilience.Policy{Retries: 1, Delay: time.Millisecond}),
	}
}

func ptr(f float64) *float64 { return &f }

func TestProcessPosEntersGeofenceAndImmobilizes(t *testing.T) {
	b := bus.NewFake()
	subj := wire.Subjects{VehicleStatus: "veh.status", VehicleCmd: "veh.cmd"}

	fts := &fakeTxStore{
		vehicles: map[string]*store.Vehicle{
			"v1": {ID: "v1", Active: true, Lat: ptr(-5), Lon: ptr(-5)},
		},
		geofences: map[string][]store.Geofence{
			"v1": {{ID: "gf1", Active: true, ImmobilizeEnter: true, Data: []byte(squareGeofenceGeoJSON)}},
		},
	}
	proc := newTestProcessor(b, subj, fts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()

	cmds := make(chan wire.VehicleCmdImmobilizer, 4)
	sub, err := b.Subscribe(subj.VehicleCmdSubject("v1"), "", func(msg bus.Msg) {
		cmd, err := wire.DecodeVehicleCmdImmobilizer(msg.Data)
		require.NoError(t, err)
		cmds <- cmd
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool {
		pos, err := wire.VehicleStatusPos{Lat: 5, Lon: 5, TS: time.Now()}.Marshal()
		require.NoError(t, err)
		return b.Publish(subj.VehicleStatusSubject("v1"), pos) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case cmd := <-cmds:
		assert.True(t, cmd.Active)
		assert.Equal(t, "gf1", *cmd.Correlation.GeofenceID)
	case <-time.After(time.Second):
		t.Fatal("no immobilize command observed for geofence entry")
	}

	require.Eventually(t, func() bool {
		return len(fts.geofenceEvents) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "v1", fts.geofenceEvents[0].VehicleID)
	assert.Equal(t, "gf1", fts.geofenceEvents[0].GeofenceID)
	assert.True(t, fts.geofenceEvents[0].Entered)

	require.Len(t, fts.immobilizedEvents, 1)
	assert.True(t, fts.immobilizedEvents[0].Active)
	assert.True(t, fts.vehicles["v1"].Immobilized)
}

func TestProcessPosInsideToInsideRaisesNoEvent(t *testing.T) {
	b := bus.NewFake()
	subj := wire.Subjects{VehicleStatus: "veh.status", VehicleCmd: "veh.cmd"}

	fts := &fakeTxStore{
		vehicles: map[string]*store.Vehicle{
			"v1": {ID: "v1", Active: true, Lat: ptr(4), Lon: ptr(4)},
		},
		geofences: map[string][]store.Geofence{
			"v1": {{ID: "gf1", Active: true, ImmobilizeEnter: true, Data: []byte(squareGeofenceGeoJSON)}},
		},
	}
	proc := newTestProcessor(b, subj, fts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()

	require.Eventually(t, func() bool {
		pos, err := wire.VehicleStatusPos{Lat: 6, Lon: 6, TS: time.Now()}.Marshal()
		require.NoError(t, err)
		return b.Publish(subj.VehicleStatusSubject("v1"), pos) == nil
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return fts.vehicles["v1"].Lat != nil && *fts.vehicles["v1"].Lat == 6
	}, time.Second, 10*time.Millisecond, "position update should still apply")

	assert.Empty(t, fts.geofenceEvents)
	assert.Empty(t, fts.immobilizedEvents)
	assert.False(t, fts.vehicles["v1"].Immobilized)
}
