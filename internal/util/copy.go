package util

import "reflect"

// CycleDetectionContext holds state for a single DeepCopy operation. It maps
// an original map, slice or pointer to its copy so shared and cyclic
// references are copied once.
type CycleDetectionContext map[copyKey]interface{}

// copyKey identifies a reference value. An address alone is ambiguous:
// zero-size values share one address, and sub-slices share their backing
// array with the slice they were cut from.
type copyKey struct {
	ptr uintptr
	typ reflect.Type
	len int
	cap int
}

// keyOf returns the cache key of v, or false when v must not be cached:
// nil values, empty slices and references to zero-size values.
func keyOf(v reflect.Value) (copyKey, bool) {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return copyKey{}, false
		}
		return copyKey{ptr: v.Pointer(), typ: v.Type()}, true
	case reflect.Ptr:
		if v.IsNil() || v.Type().Elem().Size() == 0 {
			return copyKey{}, false
		}
		return copyKey{ptr: v.Pointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.IsNil() || v.Cap() == 0 || v.Type().Elem().Size() == 0 {
			return copyKey{}, false
		}
		return copyKey{ptr: v.Pointer(), typ: v.Type(), len: v.Len(), cap: v.Cap()}, true
	}
	return copyKey{}, false
}

func (ctx CycleDetectionContext) remember(original reflect.Value, cpy interface{}) {
	if key, ok := keyOf(original); ok {
		ctx[key] = cpy
	}
}

// DeepCopy creates a deep copy of a value. It is safe for cyclic data. Common
// JSON-like shapes take a fast path; everything else goes through reflection.
func DeepCopy(src interface{}) interface{} {
	if src == nil {
		return nil
	}
	ctx := make(CycleDetectionContext)
	return deepCopyRecursive(src, ctx)
}

// CloneState deep-copies a typed state value. Values DeepCopy cannot
// reproduce with the same type (typed nils) are returned as is.
func CloneState[S any](v S) S {
	if c, ok := DeepCopy(v).(S); ok {
		return c
	}
	return v
}

func deepCopyRecursive(src interface{}, ctx CycleDetectionContext) interface{} {
	if src == nil {
		return nil
	}

	original := reflect.ValueOf(src)
	kind := original.Kind()

	// Only non-nil maps, slices and pointers can be part of a cycle.
	if kind == reflect.Map || kind == reflect.Slice || kind == reflect.Ptr {
		if key, ok := keyOf(original); ok {
			if cpy, exists := ctx[key]; exists {
				return cpy
			}
		}
	}

	switch v := src.(type) {
	case map[string]interface{}:
		if v == nil {
			return v
		}
		cpy := make(map[string]interface{}, len(v))
		ctx.remember(original, cpy)
		for key, value := range v {
			cpy[key] = deepCopyRecursive(value, ctx)
		}
		return cpy

	case []interface{}:
		if v == nil {
			return v
		}
		cpy := make([]interface{}, len(v), cap(v))
		ctx.remember(original, cpy)
		for i, value := range v {
			cpy[i] = deepCopyRecursive(value, ctx)
		}
		return cpy

	case string, int, int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8, float64, float32, bool, complex64, complex128:
		return v

	default:
		return deepCopyReflection(original, ctx)
	}
}

// setCopied assigns a copied value to dst, using the zero value when the copy
// is nil (nil interfaces, nil pointers, nil slices).
func setCopied(dst reflect.Value, copied interface{}) {
	if copied == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return
	}
	dst.Set(reflect.ValueOf(copied))
}

func deepCopyReflection(original reflect.Value, ctx CycleDetectionContext) interface{} {
	if !original.IsValid() {
		return nil
	}

	cpy := reflect.New(original.Type()).Elem()

	switch original.Kind() {
	case reflect.Ptr:
		if original.IsNil() {
			return nil
		}
		newPtr := reflect.New(original.Type().Elem())
		ctx.remember(original, newPtr.Interface())
		elem := original.Elem()
		if elem.CanInterface() {
			setCopied(newPtr.Elem(), deepCopyRecursive(elem.Interface(), ctx))
		} else {
			newPtr.Elem().Set(elem)
		}
		return newPtr.Interface()

	case reflect.Interface:
		if original.IsNil() {
			return nil
		}
		return deepCopyRecursive(original.Elem().Interface(), ctx)

	case reflect.Slice:
		if original.IsNil() {
			return nil
		}
		cpy.Set(reflect.MakeSlice(original.Type(), original.Len(), original.Cap()))
		ctx.remember(original, cpy.Interface())
		for i := 0; i < original.Len(); i++ {
			setCopied(cpy.Index(i), deepCopyRecursive(original.Index(i).Interface(), ctx))
		}

	case reflect.Map:
		if original.IsNil() {
			return nil
		}
		cpy.Set(reflect.MakeMap(original.Type()))
		ctx.remember(original, cpy.Interface())
		for _, key := range original.MapKeys() {
			copiedKey := reflect.New(key.Type()).Elem()
			setCopied(copiedKey, deepCopyRecursive(key.Interface(), ctx))
			copiedValue := reflect.New(original.Type().Elem()).Elem()
			setCopied(copiedValue, deepCopyRecursive(original.MapIndex(key).Interface(), ctx))
			cpy.SetMapIndex(copiedKey, copiedValue)
		}

	case reflect.Struct:
		// Start from a shallow copy: unexported fields cannot be read through
		// reflection and keep their original values.
		cpy.Set(original)
		for i := 0; i < original.NumField(); i++ {
			field := original.Field(i)
			if !field.CanInterface() || !cpy.Field(i).CanSet() {
				continue
			}
			setCopied(cpy.Field(i), deepCopyRecursive(field.Interface(), ctx))
		}

	case reflect.Array:
		for i := 0; i < original.Len(); i++ {
			setCopied(cpy.Index(i), deepCopyRecursive(original.Index(i).Interface(), ctx))
		}

	default:
		cpy.Set(original)
	}

	return cpy.Interface()
}
