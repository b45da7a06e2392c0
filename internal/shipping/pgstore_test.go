package shipping_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/shipping"
)

var methodCols = []string{"id", "zone_id", "method_id", "name", "description", "method_order", "is_enabled", "settings"}

func TestPGStoreListZones(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, zone_name, zone_order FROM shipping_zones ORDER BY").
		WillReturnRows(pgxmock.NewRows([]string{"id", "zone_name", "zone_order"}).
			AddRow(int64(2), "Europe", 0).
			AddRow(int64(1), "USA", 1))
	mock.ExpectQuery("FROM shipping_zone_locations").
		WithArgs(true, int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"zone_id", "location_code", "location_type"}).
			AddRow(int64(1), "US", "country").
			AddRow(int64(2), "EU", "continent"))
	mock.ExpectQuery("FROM shipping_zone_methods").
		WithArgs(true, int64(0)).
		WillReturnRows(pgxmock.NewRows(methodCols).
			AddRow(int64(5), int64(1), "flat_rate", "", "", 0, true, []byte(`{"cost":"5"}`)))

	zones, err := shipping.NewPGStore(mock).ListZones(context.Background())
	require.NoError(t, err)
	require.Len(t, zones, 2)
	require.Equal(t, "Europe", zones[0].Name)
	require.Equal(t, []string{"EU"}, zones[0].LocationsOfType(shipping.LocationContinent))
	require.Empty(t, zones[0].Methods)
	require.Len(t, zones[1].Methods, 1)
	require.Equal(t, "5", zones[1].Methods[0].Settings["cost"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreGetZoneNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, zone_name, zone_order FROM shipping_zones WHERE id").
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err = shipping.NewPGStore(mock).GetZone(context.Background(), 42)
	require.ErrorIs(t, err, shipping.ErrZoneNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreGetRestOfWorld(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM shipping_zone_methods").
		WithArgs(false, int64(0)).
		WillReturnRows(pgxmock.NewRows(methodCols).
			AddRow(int64(9), int64(0), "free_shipping", "", "", 0, true, []byte(`{}`)))

	zone, err := shipping.NewPGStore(mock).GetZone(context.Background(), shipping.RestOfWorldID)
	require.NoError(t, err)
	require.True(t, zone.IsRestOfWorld())
	require.Len(t, zone.Methods, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreCreateZoneBumpsVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO shipping_zones").
		WithArgs("UK", 0).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("DELETE FROM shipping_zone_locations").WithArgs(int64(3)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO shipping_zone_locations").WithArgs(int64(3), "GB", "country").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE shipping_settings SET version").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	zone := shipping.NewZone("UK", 0)
	require.NoError(t, zone.AddLocation("GB", shipping.LocationCountry))
	require.NoError(t, shipping.NewPGStore(mock).CreateZone(context.Background(), zone))
	require.Equal(t, int64(3), zone.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreUpdateZoneRewritesLocationsOnlyWhenChanged(t *testing.T) {
	t.Run("name only", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE shipping_zones SET zone_name").
			WithArgs("Renamed", 0, int64(4)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("UPDATE shipping_settings SET version").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		zone := shipping.Zone{ID: 4, Name: "Old"}
		zone.SetName("Renamed")
		require.NoError(t, shipping.NewPGStore(mock).UpdateZone(context.Background(), &zone))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("locations", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE shipping_zones SET zone_name").
			WithArgs("Zone", 0, int64(4)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("DELETE FROM shipping_zone_locations").WithArgs(int64(4)).WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mock.ExpectExec("INSERT INTO shipping_zone_locations").WithArgs(int64(4), "9021*", "postcode").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("UPDATE shipping_settings SET version").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		zone := shipping.Zone{ID: 4, Name: "Zone"}
		require.NoError(t, zone.AddLocation("9021*", shipping.LocationPostcode))
		require.NoError(t, shipping.NewPGStore(mock).UpdateZone(context.Background(), &zone))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing zone rolls back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE shipping_zones SET zone_name").
			WithArgs("Gone", 0, int64(8)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		zone := shipping.Zone{ID: 8, Name: "Gone"}
		err = shipping.NewPGStore(mock).UpdateZone(context.Background(), &zone)
		require.ErrorIs(t, err, shipping.ErrZoneNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPGStoreAddMethodChecksZone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(12)).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err = shipping.NewPGStore(mock).AddMethod(context.Background(), shipping.ZoneMethod{ZoneID: 12, MethodID: shipping.MethodFlatRate})
	require.ErrorIs(t, err, shipping.ErrZoneNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT version FROM shipping_settings").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(17)))
	v, err := shipping.NewPGStore(mock).Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(17), v)
	require.NoError(t, mock.ExpectationsWereMet())
}
