package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "batchinsert/errors"
)

func TestCollectionValidator(t *testing.T) {
	v := NewCollectionValidator()

	assert.NoError(t, v.Validate([]any{&country{}, &country{}}))

	err := v.Validate(nil)
	assert.True(t, appErrors.IsValidation(err))

	err = v.Validate([]any{&country{}, &author{}})
	assert.True(t, appErrors.IsValidation(err))
	assert.True(t, errors.Is(err, ErrHeterogeneousCollection))

	err = v.Validate([]any{country{}})
	assert.True(t, appErrors.IsValidation(err))

	err = v.Validate([]any{&country{}, nil})
	assert.True(t, appErrors.IsValidation(err))

	t.Run("轻量路径", func(t *testing.T) {
		assert.NoError(t, v.ValidateLight([]IBatchInsertable{&testEntity{}, &testEntity{}}))
		assert.True(t, appErrors.IsValidation(v.ValidateLight(nil)))
		err := v.ValidateLight([]IBatchInsertable{&testEntity{}, &namedRecord{}})
		assert.True(t, errors.Is(err, ErrHeterogeneousCollection))
	})
}
