package batch

import (
	"fmt"
	"reflect"

	"batchinsert/errors"
)

// IValidator 写入前校验集合
type IValidator interface {
	Validate(records []any) error
	ValidateLight(records []IBatchInsertable) error
}

// CollectionValidator 默认校验：非空、同一类型；元数据路径还要求指针（需要回填主键）
type CollectionValidator struct{}

func NewCollectionValidator() *CollectionValidator {
	return &CollectionValidator{}
}

func (v *CollectionValidator) Validate(records []any) error {
	if len(records) == 0 {
		return errors.NewValidationError("collection is empty")
	}
	first, err := sameType(len(records), func(i int) any { return records[i] })
	if err != nil {
		return err
	}
	if first.Kind() != reflect.Ptr {
		return errors.NewValidationError(fmt.Sprintf("records must be pointers, got %s", first))
	}
	return nil
}

func (v *CollectionValidator) ValidateLight(records []IBatchInsertable) error {
	if len(records) == 0 {
		return errors.NewValidationError("collection is empty")
	}
	_, err := sameType(len(records), func(i int) any { return records[i] })
	return err
}

func sameType(n int, at func(i int) any) (reflect.Type, error) {
	var first reflect.Type
	for i := 0; i < n; i++ {
		r := at(i)
		if r == nil {
			return nil, errors.NewValidationError(fmt.Sprintf("record %d is nil", i))
		}
		t := reflect.TypeOf(r)
		if first == nil {
			first = t
			continue
		}
		if t != first {
			return nil, errors.NewErrorWithCause(errors.ErrCodeValidation,
				fmt.Sprintf("record %d is %s, collection holds %s", i, t, first),
				ErrHeterogeneousCollection)
		}
	}
	return first, nil
}
