package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchinsert/data/orm"
	"batchinsert/data/orm/basic"
)

type member struct {
	ID   int64 `gorm:"primaryKey;autoIncrement"`
	Name string
}

type club struct {
	ID      int64     `gorm:"primaryKey;autoIncrement"`
	Members []*member `batch:"manyToMany;cascade"`
	Guests  []*member `batch:"hasMany"`
}

func newTestProvider(t *testing.T) *basic.Provider {
	t.Helper()
	p, err := basic.NewProvider(&author{}, &book{}, &country{}, &event{})
	require.NoError(t, err)
	return p
}

func analyze(t *testing.T, p *basic.Provider, oracle orm.IIdentityOracle, records ...any) *RelatedEntities {
	t.Helper()
	meta, err := p.MetadataFor(records[0])
	require.NoError(t, err)
	related, err := NewRelationAnalyzer(p, oracle).Analyze(records, meta)
	require.NoError(t, err)
	return related
}

func TestRelationAnalyzer_OwningToOne(t *testing.T) {
	p := newTestProvider(t)

	t.Run("已持久化实例不排队", func(t *testing.T) {
		related := analyze(t, p, nil, &author{Name: "a", Country: &country{ID: 5, Code: "FR"}})
		assert.Empty(t, related.Before)
		assert.Empty(t, related.After)
		assert.True(t, related.Empty())
	})

	t.Run("新实例按类型名分组", func(t *testing.T) {
		fr := &country{Code: "FR"}
		related := analyze(t, p, nil, &author{Name: "a", Country: fr})
		require.Len(t, related.Before, 1)
		assert.Equal(t, "batch.country", related.Before[0].TypeName)
		require.Len(t, related.Before[0].Records, 1)
		assert.Same(t, fr, related.Before[0].Records[0])
	})

	t.Run("空关联跳过", func(t *testing.T) {
		related := analyze(t, p, nil, &author{Name: "a"})
		assert.True(t, related.Empty())
	})

	t.Run("同一实例只排队一次", func(t *testing.T) {
		fr, de := &country{Code: "FR"}, &country{Code: "DE"}
		related := analyze(t, p, nil,
			&author{Name: "a", Country: fr},
			&author{Name: "b", Country: de},
			&author{Name: "c", Country: fr})
		require.Len(t, related.Before, 1)
		assert.Equal(t, []any{fr, de}, related.Before[0].Records)
	})

	t.Run("自定义判断", func(t *testing.T) {
		fr := &country{Code: "FR"}
		oracle := orm.OracleFunc(func(record any) bool { return record == any(fr) })
		related := analyze(t, p, oracle, &author{Name: "a", Country: fr}, &author{Name: "b", Country: &country{}})
		require.Len(t, related.Before, 1)
		assert.Len(t, related.Before[0].Records, 1)
		assert.NotSame(t, fr, related.Before[0].Records[0])
	})
}

func TestRelationAnalyzer_Inverse(t *testing.T) {
	p := newTestProvider(t)

	b1, b2, b3 := &book{Title: "one"}, &book{Title: "two"}, &book{ID: 9, Title: "stored"}
	fr := &country{Code: "FR"}
	related := analyze(t, p, nil,
		&author{Name: "a", Country: fr, Books: []*book{b1, b3}},
		&author{Name: "b", Books: []*book{b2, nil}})

	require.Len(t, related.Before, 1)
	require.Len(t, related.After, 1)
	assert.Equal(t, "batch.book", related.After[0].TypeName)
	assert.Equal(t, []any{b1, b2}, related.After[0].Records)
}

func TestRelationAnalyzer_SkippedKinds(t *testing.T) {
	p := newTestProvider(t)
	related := analyze(t, p, nil, &club{
		Members: []*member{{Name: "m"}},
		Guests:  []*member{{Name: "g"}},
	})
	assert.True(t, related.Empty())
}
