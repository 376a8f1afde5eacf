package orm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "batchinsert/errors"
)

type account struct {
	ID   int64
	Name string
}

// stubProvider 仅支持 *account 的最小元数据提供者
type stubProvider struct {
	meta *ModelMeta
}

func (p stubProvider) MetadataFor(record any) (*ModelMeta, error) {
	if _, ok := record.(*account); !ok {
		return nil, ErrMetadataNotFound
	}
	return p.meta, nil
}
func (p stubProvider) MetadataByName(string) (*ModelMeta, error) { return p.meta, nil }
func (p stubProvider) FieldValue(record any, field string) (any, error) {
	if field != "ID" {
		return nil, ErrUnsupported
	}
	return record.(*account).ID, nil
}
func (p stubProvider) SetFieldValue(any, string, any) error          { return ErrUnsupported }
func (p stubProvider) CallSetter(any, string, any) error             { return ErrUnsupported }
func (p stubProvider) InvokeHook(context.Context, any, string) error { return nil }

func accountMeta(auto bool) *ModelMeta {
	return &ModelMeta{
		TypeName: "orm.account",
		Table:    "accounts",
		Fields: []FieldMeta{
			{Name: "ID", Column: "id", PrimaryKey: true, AutoIncrement: auto, Type: "int64"},
			{Name: "Name", Column: "name", Type: "string"},
		},
		Associations: []AssociationMeta{{Name: "Owner", Kind: AssociationBelongsTo, Target: "orm.user", Owning: true}},
	}
}

func TestModelMeta_IdentifierField(t *testing.T) {
	t.Run("唯一主键", func(t *testing.T) {
		id, err := accountMeta(true).IdentifierField()
		require.NoError(t, err)
		assert.Equal(t, "id", id.Column)
		assert.True(t, id.IsInteger())
		assert.True(t, accountMeta(true).UsesGeneratedIdentity())
		assert.False(t, accountMeta(false).UsesGeneratedIdentity())
	})

	t.Run("缺失主键", func(t *testing.T) {
		meta := &ModelMeta{TypeName: "x", Fields: []FieldMeta{{Name: "A", Column: "a"}}}
		_, err := meta.IdentifierField()
		assert.True(t, errors.Is(err, ErrIdentifier))
		assert.True(t, appErrors.IsConfiguration(err))
		assert.False(t, meta.UsesGeneratedIdentity())
	})

	t.Run("多个主键", func(t *testing.T) {
		meta := &ModelMeta{TypeName: "x", Fields: []FieldMeta{
			{Name: "A", Column: "a", PrimaryKey: true},
			{Name: "B", Column: "b", PrimaryKey: true},
		}}
		_, err := meta.IdentifierField()
		assert.Contains(t, err.Error(), "found 2")
	})
}

func TestModelMeta_Lookup(t *testing.T) {
	meta := accountMeta(true)

	f, ok := meta.Field("Name")
	require.True(t, ok)
	assert.Equal(t, "name", f.Column)

	f, ok = meta.FieldByColumn("id")
	require.True(t, ok)
	assert.Equal(t, "ID", f.Name)

	_, ok = meta.Field("Missing")
	assert.False(t, ok)

	a, ok := meta.Association("Owner")
	require.True(t, ok)
	assert.True(t, a.Kind.ToOne())
	assert.False(t, AssociationHasMany.ToOne())
}

func TestDefaultOracle(t *testing.T) {
	oracle := NewDefaultOracle(stubProvider{meta: accountMeta(true)})

	assert.True(t, oracle.IsKnown(&account{ID: 7}))
	assert.False(t, oracle.IsKnown(&account{}))
	assert.False(t, oracle.IsKnown("not a model"))

	clientAssigned := NewDefaultOracle(stubProvider{meta: accountMeta(false)})
	assert.False(t, clientAssigned.IsKnown(&account{ID: 7}))
}

func TestIdentityMap(t *testing.T) {
	a, b := &account{}, &account{}
	fallback := OracleFunc(func(record any) bool { return record == any(b) })
	m := NewIdentityMap(fallback)

	assert.False(t, m.IsKnown(a))
	m.Mark(a, account{}, nil)
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Contains(a))
	assert.True(t, m.IsKnown(a))
	assert.False(t, m.Contains(b))
	assert.True(t, m.IsKnown(b))
	assert.False(t, m.IsKnown(&account{}))
}

func TestIsZero(t *testing.T) {
	var nilPtr *int64
	zero := int64(0)
	one := int64(1)

	assert.True(t, IsZero(nil))
	assert.True(t, IsZero(nilPtr))
	assert.True(t, IsZero(&zero))
	assert.True(t, IsZero(""))
	assert.True(t, IsZero([16]byte{}))
	assert.False(t, IsZero(&one))
	assert.False(t, IsZero("x"))
}

func TestCapabilities(t *testing.T) {
	caps := NewCapabilities(CapabilityFieldMutation)
	assert.True(t, caps.Supports(CapabilityFieldMutation))
	assert.False(t, caps.Supports(CapabilityIdentifierSetter))
	assert.False(t, Capabilities(nil).Supports(CapabilityFieldMutation))
}
