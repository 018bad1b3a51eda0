package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mockDB(t *testing.T) *gorm.DB {
	t.Helper()
	sqlDB, _, err := sqlmock.New(sqlmock.MonitorPingsOption(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return gdb
}

func get(r *mux.Router, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLiveness(t *testing.T) {
	r := mux.NewRouter()
	RegisterRoutes(r)
	require.Equal(t, http.StatusOK, get(r, "/healthz").Code)
	require.Equal(t, http.StatusNotFound, get(r, "/readyz").Code)
}

func TestReadinessWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := mux.NewRouter()
	RegisterRoutesWithDB(r, mockDB(t), RedisCheck(rdb))
	require.Equal(t, http.StatusOK, get(r, "/readyz").Code)

	mr.Close()
	rec := get(r, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "redis unreachable")
}

func TestReadinessFailingCheck(t *testing.T) {
	r := mux.NewRouter()
	RegisterRoutesWithDB(r, mockDB(t), Check{Name: "s3", Ping: func(context.Context) error {
		return errors.New("down")
	}})
	require.Equal(t, http.StatusServiceUnavailable, get(r, "/readyz").Code)
}

func TestReadinessWithoutDB(t *testing.T) {
	r := mux.NewRouter()
	RegisterRoutesWithDB(r, nil)
	require.Equal(t, http.StatusServiceUnavailable, get(r, "/readyz").Code)
}
