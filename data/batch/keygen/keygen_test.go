package keygen

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchinsert/data/db/dialect"
	"batchinsert/data/orm"
	"batchinsert/data/orm/basic"
	appErrors "batchinsert/errors"
)

type order struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	Number string

	persisted int
}

func (o *order) PrePersist() { o.persisted++ }

type document struct {
	ID    uuid.UUID `gorm:"primaryKey"`
	Title string

	viaSetter bool
}

func (d *document) SetID(id uuid.UUID) {
	d.ID = id
	d.viaSetter = true
}

type tag struct {
	Code  string `gorm:"primaryKey"`
	Label string
}

type ticket struct {
	ID      int64 `gorm:"primaryKey"`
	Subject string
}

func newProvider(t *testing.T) *basic.Provider {
	t.Helper()
	p, err := basic.NewProvider()
	require.NoError(t, err)
	return p
}

func metaOf(t *testing.T, p *basic.Provider, record any) *orm.ModelMeta {
	t.Helper()
	meta, err := p.MetadataFor(record)
	require.NoError(t, err)
	return meta
}

func TestSelector_Select(t *testing.T) {
	p := newProvider(t)

	withoutSeq := NewSelector(p, nil)
	g, err := withoutSeq.Select(metaOf(t, p, &order{}))
	require.NoError(t, err)
	assert.IsType(t, &IdentityGenerator{}, g)

	g, err = withoutSeq.Select(metaOf(t, p, &document{}))
	require.NoError(t, err)
	assert.IsType(t, &UUIDGenerator{}, g)

	g, err = withoutSeq.Select(metaOf(t, p, &ticket{}))
	require.NoError(t, err)
	assert.IsType(t, &UUIDGenerator{}, g)

	alloc, err := NewSnowflakeAllocator(1, 1)
	require.NoError(t, err)
	g, err = NewSelector(p, alloc).Select(metaOf(t, p, &ticket{}))
	require.NoError(t, err)
	assert.IsType(t, &SequenceGenerator{}, g)

	_, err = withoutSeq.Select(&orm.ModelMeta{TypeName: "none"})
	assert.True(t, errors.Is(err, orm.ErrIdentifier))
}

func TestIdentityGenerator(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	g := NewIdentityGenerator(p)

	t.Run("写入前只调用钩子", func(t *testing.T) {
		records := []any{&order{Number: "a"}, &order{Number: "b"}}
		require.NoError(t, g.Prepare(ctx, records, metaOf(t, p, &order{})))
		for _, r := range records {
			assert.Equal(t, int64(0), r.(*order).ID)
			assert.Equal(t, 1, r.(*order).persisted)
		}
	})

	t.Run("连续ID回填", func(t *testing.T) {
		records := []any{&order{}, &order{}, &order{}}
		meta := metaOf(t, p, &order{})
		n, err := g.Backfill(records, meta, dialect.SQLitePlatform{}.FirstGeneratedID(50, 3))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, int64(48), records[0].(*order).ID)
		assert.Equal(t, int64(49), records[1].(*order).ID)
		assert.Equal(t, int64(50), records[2].(*order).ID)
	})

	t.Run("已有主键的记录跳过且不占用ID", func(t *testing.T) {
		records := []any{&order{}, &order{ID: 7}, &order{}}
		meta := metaOf(t, p, &order{})
		n, err := g.Backfill(records, meta, dialect.SQLitePlatform{}.FirstGeneratedID(50, 3))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, int64(48), records[0].(*order).ID)
		assert.Equal(t, int64(7), records[1].(*order).ID)
		assert.Equal(t, int64(49), records[2].(*order).ID)
	})

	t.Run("按RETURNING值回填", func(t *testing.T) {
		records := []any{&order{}, &order{}}
		meta := metaOf(t, p, &order{})
		n, err := g.BackfillValues(records, meta, []any{int64(5), nil})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, int64(5), records[0].(*order).ID)
		assert.Equal(t, int64(0), records[1].(*order).ID)

		_, err = g.BackfillValues(records, meta, []any{int64(1)})
		assert.True(t, appErrors.IsValidation(err))
	})
}

func TestUUIDGenerator(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)
	g := NewUUIDGenerator(p)

	t.Run("通过setter注入", func(t *testing.T) {
		existing := uuid.New()
		records := []any{&document{}, &document{ID: existing}}
		require.NoError(t, g.Prepare(ctx, records, metaOf(t, p, &document{})))

		first := records[0].(*document)
		assert.NotEqual(t, uuid.Nil, first.ID)
		assert.Equal(t, uuid.Version(4), first.ID.Version())
		assert.True(t, first.viaSetter)

		second := records[1].(*document)
		assert.Equal(t, existing, second.ID)
		assert.False(t, second.viaSetter)
	})

	t.Run("字符串主键直接赋值", func(t *testing.T) {
		records := []any{&tag{}, &tag{}}
		require.NoError(t, g.Prepare(ctx, records, metaOf(t, p, &tag{})))

		a, b := records[0].(*tag).Code, records[1].(*tag).Code
		_, err := uuid.Parse(a)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("整数主键无法容纳UUID", func(t *testing.T) {
		err := g.Prepare(ctx, []any{&ticket{}}, metaOf(t, p, &ticket{}))
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("缺少注入能力", func(t *testing.T) {
		meta := *metaOf(t, p, &tag{})
		meta.Capabilities = orm.NewCapabilities()
		err := g.Prepare(ctx, []any{&tag{}}, &meta)
		assert.True(t, errors.Is(err, orm.ErrUnsupported))
	})
}

func TestSequenceGenerator_Snowflake(t *testing.T) {
	alloc, err := NewSnowflakeAllocator(3, 9)
	require.NoError(t, err)
	alloc.now = func() int64 { return snowflakeEpoch + 1000 }

	p := newProvider(t)
	records := []any{&ticket{}, &ticket{ID: 1}, &ticket{}}
	require.NoError(t, NewSequenceGenerator(p, alloc).Prepare(context.Background(), records, metaOf(t, p, &ticket{})))

	first, third := records[0].(*ticket).ID, records[2].(*ticket).ID
	assert.Equal(t, int64(1), records[1].(*ticket).ID)
	assert.Equal(t, first+1, third)

	ts, dc, worker, seq := ParseSnowflake(first)
	assert.Equal(t, snowflakeEpoch+1000, ts)
	assert.Equal(t, int64(3), dc)
	assert.Equal(t, int64(9), worker)
	assert.Equal(t, int64(0), seq)

	_, err = NewSnowflakeAllocator(32, 0)
	assert.True(t, appErrors.IsConfiguration(err))
}

func TestSnowflakeAllocator_ClockBackwards(t *testing.T) {
	alloc, err := NewSnowflakeAllocator(0, 0)
	require.NoError(t, err)

	now := snowflakeEpoch + 10
	alloc.now = func() int64 { return now }
	_, err = alloc.Allocate(context.Background(), "t", 1)
	require.NoError(t, err)

	now--
	_, err = alloc.Allocate(context.Background(), "t", 1)
	assert.Error(t, err)
}

// fakeCounter 模拟 INCRBY
type fakeCounter struct {
	values map[string]int64
	err    error
}

func (f *fakeCounter) IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.values[key] += value
	return redis.NewIntResult(f.values[key], nil)
}

func TestRedisAllocator(t *testing.T) {
	ctx := context.Background()
	counter := &fakeCounter{values: map[string]int64{"batch:seq:keygen.ticket": 40}}
	alloc := NewRedisAllocator(counter, "")

	p := newProvider(t)
	records := []any{&ticket{}, &ticket{}, &ticket{}}
	require.NoError(t, NewSequenceGenerator(p, alloc).Prepare(ctx, records, metaOf(t, p, &ticket{})))

	assert.Equal(t, int64(41), records[0].(*ticket).ID)
	assert.Equal(t, int64(42), records[1].(*ticket).ID)
	assert.Equal(t, int64(43), records[2].(*ticket).ID)
	assert.Equal(t, int64(43), counter.values["batch:seq:keygen.ticket"])

	ids, err := alloc.Allocate(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, ids)

	failing := NewRedisAllocator(&fakeCounter{err: errors.New("connection refused")}, "ids:")
	_, err = failing.Allocate(ctx, "x", 2)
	assert.True(t, appErrors.IsDatabase(err))
}
