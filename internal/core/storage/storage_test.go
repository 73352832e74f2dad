package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/directfb2/DirectFB2-sub002/config"
)

func TestKVStore_ObjectIsolation(t *testing.T) {
	eng, err := NewMemory()
	require.NoError(t, err)
	defer eng.Close()

	props := NewKVStore(eng, []byte("props/"))
	pool := props.Pool(1)
	a := pool.Object(1)
	b := pool.Object(2)
	assert.Equal(t, "props/00000001/00000002/", string(b.Prefix()))

	require.NoError(t, a.Put("name", []byte("a")))
	require.NoError(t, a.Put("kind", []byte("window")))
	require.NoError(t, b.Put("name", []byte("b")))

	v, err := a.Get("name")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), v)

	names, err := a.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"kind", "name"}, names)

	all, err := pool.Names()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := a.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = a.Get("name")
	assert.True(t, IsNotFound(err))
	ok, err := b.Has("name")
	require.NoError(t, err)
	assert.True(t, ok)

	t.Log("✅ 对象属性隔离测试通过")
}

func TestEngine_Errors(t *testing.T) {
	eng, err := NewMemory()
	require.NoError(t, err)

	_, err = eng.Get(nil)
	assert.ErrorIs(t, err, ErrEmptyKey)

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())
	assert.ErrorIs(t, eng.Put([]byte("k"), nil), ErrClosed)
}

func TestEngine_OnDisk(t *testing.T) {
	cfg := config.DefaultStorageConfig()
	cfg.InMemory = false
	cfg.DataDir = t.TempDir()

	eng, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.Put([]byte("k"), []byte("v")))
	require.NoError(t, eng.Close())

	assert.DirExists(t, filepath.Join(cfg.DataDir, "fusion.db"))
}

func TestModule_Lifecycle(t *testing.T) {
	var eng InternalEngine
	app := fxtest.New(t,
		Module(),
		fx.Populate(&eng),
	)
	app.RequireStart()
	require.NoError(t, eng.Put([]byte("k"), []byte("v")))
	app.RequireStop()

	_, err := eng.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestModule_ClearsStaleProperties(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Storage.InMemory = false
	cfg.Storage.DataDir = t.TempDir()

	eng, err := NewEngine(cfg.Storage)
	require.NoError(t, err)
	require.NoError(t, Properties(eng).Pool(1).Object(1).Put("name", []byte("old")))
	require.NoError(t, eng.Put([]byte("other/k"), []byte("v")))
	require.NoError(t, eng.Close())

	var reopened InternalEngine
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&reopened),
	)
	app.RequireStart()
	defer app.RequireStop()

	names, err := Properties(reopened).Names()
	require.NoError(t, err)
	assert.Empty(t, names)

	ok, err := reopened.Has([]byte("other/k"))
	require.NoError(t, err)
	assert.True(t, ok)

	t.Log("✅ 遗留属性清除测试通过")
}
